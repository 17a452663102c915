package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// HostMatches reports whether the host of targetURL is one of suffixes or a
// subdomain of one (m.tiktok.com matches tiktok.com). An empty suffix list
// matches every host.
func HostMatches(targetURL string, suffixes []string) bool {
	parsed, err := url.Parse(targetURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return false
	}
	if len(suffixes) == 0 {
		return true
	}

	for _, s := range suffixes {
		s = strings.ToLower(strings.TrimPrefix(s, "."))
		if host == s || strings.HasSuffix(host, "."+s) {
			return true
		}
	}
	return false
}

// IsHTTPScheme returns true if the URL has an http or https scheme.
func IsHTTPScheme(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		return false
	}
	scheme := strings.ToLower(parsed.Scheme)
	return scheme == "http" || scheme == "https"
}

// ResolveReference resolves a possibly-relative ref against base.
func ResolveReference(base string, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base URL %q: %w", base, err)
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse ref URL %q: %w", ref, err)
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
