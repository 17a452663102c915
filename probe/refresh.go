package probe

import (
	"strings"

	"github.com/lukemcguire/vidcheck/urlutil"
)

// ParseRefresh extracts the target of a meta refresh content attribute such
// as `0; url=https://www.tiktok.com/@a/video/1`. The target may be quoted.
func ParseRefresh(content string) (string, bool) {
	_, rest, found := strings.Cut(content, ";")
	if !found {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 4 || !strings.EqualFold(rest[:3], "url") {
		return "", false
	}
	rest = strings.TrimSpace(rest[3:])
	if !strings.HasPrefix(rest, "=") {
		return "", false
	}
	target := strings.Trim(strings.TrimSpace(rest[1:]), `"'`)
	return target, target != ""
}

// resolveAgainst resolves ref against base and keeps only http(s) results.
func resolveAgainst(base, ref string) (string, bool) {
	abs, err := urlutil.ResolveReference(base, ref)
	if err != nil || !urlutil.IsHTTPScheme(abs) {
		return "", false
	}
	return abs, true
}
