package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrEmptyURL is returned for blank input.
var ErrEmptyURL = errors.New("empty URL")

// Normalize takes a raw link as it appears in an input list and returns a
// normalized absolute URL. Normalization includes:
// - Trimming surrounding whitespace
// - Assuming https for scheme-less links such as "vm.tiktok.com/abc"
// - Lowercasing the scheme and host
// - Stripping fragments (#section)
// - Stripping trailing slashes (except for root path "/")
//
// Query parameters are preserved; use Canonical to drop them.
func Normalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrEmptyURL
	}

	if !strings.Contains(rawURL, "://") && !strings.HasPrefix(rawURL, "/") {
		rawURL = "https://" + rawURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize URL %q: %w", rawURL, err)
	}

	if parsed.Host == "" {
		return "", fmt.Errorf("normalize URL %q: missing host", rawURL)
	}
	if !IsHTTPScheme(parsed.String()) {
		return "", fmt.Errorf("normalize URL %q: unsupported scheme %q", rawURL, parsed.Scheme)
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimRight(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// Canonical returns the normalized form of rawURL without its query string.
// Share parameters such as "?is_from_webapp=1" do not identify the video.
func Canonical(rawURL string) (string, error) {
	n, err := Normalize(rawURL)
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(n)
	if err != nil {
		return "", fmt.Errorf("canonical URL %q: %w", n, err)
	}
	parsed.RawQuery = ""
	parsed.ForceQuery = false
	return parsed.String(), nil
}
