package resolver

import (
	"io"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/lukemcguire/vidcheck/probe"
	"github.com/lukemcguire/vidcheck/urlutil"
)

// jsUnescaper undoes the escaping of URLs embedded in inline JSON state.
var jsUnescaper = strings.NewReplacer(`\/`, `/`, `\u002F`, `/`, `\u002f`, `/`, `&amp;`, `&`)

// ExtractHints returns candidate video URLs declared by a landing document,
// most authoritative first: meta refresh targets, <link rel="canonical">,
// then og:url. Relative targets are resolved against base and non-HTTP
// schemes are dropped.
func ExtractHints(body io.Reader, base string) []string {
	tokenizer := html.NewTokenizer(body)
	var refresh, canonical, og []string

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// EOF or malformed input: return what was found
			return resolveAll(base, append(append(refresh, canonical...), og...))
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			attrs := attrMap(token.Attr)
			switch token.Data {
			case "meta":
				if strings.EqualFold(attrs["http-equiv"], "refresh") {
					if target, ok := probe.ParseRefresh(attrs["content"]); ok {
						refresh = append(refresh, target)
					}
				}
				if attrs["property"] == "og:url" || attrs["name"] == "og:url" {
					og = append(og, attrs["content"])
				}
			case "link":
				if hasToken(attrs["rel"], "canonical") {
					canonical = append(canonical, attrs["href"])
				}
			}
		}
	}
}

// ScanText finds platform links anywhere in a raw body, including URLs
// escaped inside inline scripts.
func ScanText(body string, pattern *regexp.Regexp) []string {
	return pattern.FindAllString(jsUnescaper.Replace(body), -1)
}

func resolveAll(base string, refs []string) []string {
	var out []string
	for _, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		abs, err := urlutil.ResolveReference(base, ref)
		if err != nil || !urlutil.IsHTTPScheme(abs) {
			continue
		}
		out = append(out, abs)
	}
	return out
}

func attrMap(attrs []html.Attribute) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[strings.ToLower(a.Key)] = strings.TrimSpace(a.Val)
	}
	return m
}

func hasToken(list, want string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, want) {
			return true
		}
	}
	return false
}
