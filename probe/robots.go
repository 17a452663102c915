package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsEntry is a parsed robots.txt with its fetch time. Nil data means
// allow-all (missing file, server error or fetch failure).
type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// RobotsChecker fetches and caches robots.txt rules per host. It is shared
// by every session of a run and fails open on any error.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	ttl       time.Duration
	cache     sync.Map // scheme://host -> *robotsEntry
}

// NewRobotsChecker creates a RobotsChecker that matches rules for userAgent.
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		maxBytes:  512 << 10,
		ttl:       time.Hour,
	}
}

// Allowed reports whether rawURL may be fetched. Errors are returned for
// visibility but the verdict is then always true.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Host == "" {
		return true, nil
	}

	origin := parsed.Scheme + "://" + parsed.Host
	if v, ok := r.cache.Load(origin); ok {
		if entry, ok := v.(*robotsEntry); ok && time.Since(entry.fetchedAt) < r.ttl {
			return entry.allows(parsed, r.userAgent), nil
		}
		r.cache.Delete(origin)
	}

	data, err := r.fetch(ctx, origin)
	entry := &robotsEntry{data: data, fetchedAt: time.Now()}
	r.cache.Store(origin, entry)
	return entry.allows(parsed, r.userAgent), err
}

func (r *RobotsChecker) fetch(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("create robots.txt request for %s: %w", origin, err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt for %s: %w", origin, err)
	}
	defer resp.Body.Close()

	// 404 and 5xx allow all crawling
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return nil, nil
	}

	body, err := readAllLimit(resp.Body, r.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read robots.txt for %s: %w", origin, err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt for %s: %w", origin, err)
	}
	return data, nil
}

func (e *robotsEntry) allows(u *url.URL, userAgent string) bool {
	if e.data == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return e.data.TestAgent(path, userAgent)
}
