package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	// ErrNotVideoURL is returned when a URL lacks the account and video
	// segments of the canonical shape.
	ErrNotVideoURL = errors.New("not a canonical video URL")
	// ErrPlaceholderAccount is returned for the "/@/video/<id>" shape the
	// platform serves when the owning account cannot be determined.
	ErrPlaceholderAccount = errors.New("placeholder account segment")
	// ErrForeignHost is returned when the URL is not on a platform host.
	ErrForeignHost = errors.New("host is not a platform host")
)

// Platform describes the URL shape of a short-video platform.
type Platform struct {
	Name string
	// Hosts are the canonical host suffixes. Empty accepts any host.
	Hosts []string
	// RedirectorHosts serve intermediate share pages whose body may carry
	// the real video URL.
	RedirectorHosts []string
	// AccountPrefix marks the account path segment, "@" on TikTok.
	AccountPrefix string
	// VideoSegment is the path segment preceding the video id.
	VideoSegment string
	// OEmbedEndpoint answers embed metadata queries for a video URL.
	// Empty disables oEmbed checks.
	OEmbedEndpoint string
}

// TikTok is the default platform.
var TikTok = Platform{
	Name:            "tiktok",
	Hosts:           []string{"tiktok.com"},
	RedirectorHosts: []string{"tiktokv.com"},
	AccountPrefix:   "@",
	VideoSegment:    "video",
	OEmbedEndpoint:  "https://www.tiktok.com/oembed",
}

// VideoURL is a parsed canonical video URL.
type VideoURL struct {
	URL     string
	Account string
	ID      string
}

// ParseVideoURL accepts only the canonical long form
// scheme://host/<prefix><account>/<video>/<id> on a platform host. The
// returned URL has its query and fragment removed.
func (p Platform) ParseVideoURL(raw string) (VideoURL, error) {
	c, err := Canonical(raw)
	if err != nil {
		return VideoURL{}, err
	}
	if !HostMatches(c, p.Hosts) {
		return VideoURL{}, fmt.Errorf("%w: %s", ErrForeignHost, c)
	}

	parsed, err := url.Parse(c)
	if err != nil {
		return VideoURL{}, fmt.Errorf("parse %q: %w", c, err)
	}
	segs := pathSegments(parsed.Path)
	if len(segs) != 3 || segs[1] != p.videoSegment() || segs[2] == "" {
		return VideoURL{}, fmt.Errorf("%w: %s", ErrNotVideoURL, c)
	}

	account := segs[0]
	if p.AccountPrefix != "" {
		if !strings.HasPrefix(account, p.AccountPrefix) {
			return VideoURL{}, fmt.Errorf("%w: %s", ErrNotVideoURL, c)
		}
		account = strings.TrimPrefix(account, p.AccountPrefix)
	}
	if account == "" {
		return VideoURL{}, fmt.Errorf("%w: %s", ErrPlaceholderAccount, c)
	}

	return VideoURL{URL: c, Account: account, ID: segs[2]}, nil
}

// IsCanonical reports whether raw already has the canonical long form.
func (p Platform) IsCanonical(raw string) bool {
	_, err := p.ParseVideoURL(raw)
	return err == nil
}

// VideoID extracts the id following the video segment anywhere in the path.
func (p Platform) VideoID(raw string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	segs := pathSegments(parsed.Path)
	for i := 0; i+1 < len(segs); i++ {
		if segs[i] == p.videoSegment() && segs[i+1] != "" {
			return segs[i+1], true
		}
	}
	return "", false
}

// OEmbedURL returns the oEmbed query for the video raw points at. Canonical
// URLs are queried as is; any other URL carrying a video id is queried with
// an account-less URL for that id.
func (p Platform) OEmbedURL(raw string) (string, bool) {
	if p.OEmbedEndpoint == "" {
		return "", false
	}
	target := ""
	if v, err := p.ParseVideoURL(raw); err == nil {
		target = v.URL
	} else if id, ok := p.VideoID(raw); ok && len(p.Hosts) > 0 {
		target = fmt.Sprintf("https://www.%s/%s_/%s/%s",
			strings.TrimPrefix(p.Hosts[0], "."), p.AccountPrefix, p.videoSegment(), url.PathEscape(id))
	}
	if target == "" {
		return "", false
	}
	return p.OEmbedEndpoint + "?" + url.Values{"url": {target}}.Encode(), true
}

// HasVideoSegment reports whether raw still points at a video page.
func (p Platform) HasVideoSegment(raw string) bool {
	_, ok := p.VideoID(raw)
	return ok
}

// IsRedirector reports whether raw is on one of the share redirector hosts.
func (p Platform) IsRedirector(raw string) bool {
	return len(p.RedirectorHosts) > 0 && HostMatches(raw, p.RedirectorHosts)
}

// LinkPattern returns a case-insensitive pattern matching links to the
// platform and its redirectors inside free text.
func (p Platform) LinkPattern() *regexp.Regexp {
	hosts := append(append([]string{}, p.Hosts...), p.RedirectorHosts...)
	if len(p.Hosts) == 0 {
		return regexp.MustCompile(`(?i)https?://[^\s"'<>]+`)
	}
	quoted := make([]string, len(hosts))
	for i, h := range hosts {
		quoted[i] = regexp.QuoteMeta(strings.ToLower(h))
	}
	return regexp.MustCompile(`(?i)https?://(?:[a-z0-9-]+\.)*(?:` +
		strings.Join(quoted, "|") + `)(?::\d+)?(?:/[^\s"'<>]*)?`)
}

func (p Platform) videoSegment() string {
	if p.VideoSegment == "" {
		return "video"
	}
	return p.VideoSegment
}

func pathSegments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
