// Package probe defines the external fetch and render capabilities a liveness
// run depends on, and provides the HTTP session that implements both.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lukemcguire/vidcheck/result"
)

var (
	// ErrDisallowed is returned when robots.txt forbids fetching a URL.
	ErrDisallowed = errors.New("disallowed by robots.txt")
	// ErrTooManyRedirects is returned when a redirect chain exceeds the limit.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// Request describes a single page fetch.
type Request struct {
	URL     string
	Header  http.Header   // merged over the session defaults
	Timeout time.Duration // 0 uses the session default
}

// Response is the observable outcome of a fetch after redirects.
type Response struct {
	StatusCode int
	FinalURL   string
	Body       string
	Elapsed    time.Duration
}

// Fetcher performs a lightweight page fetch following redirects.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

// Page is the outcome of rendering a URL in a persistent browsing context.
type Page struct {
	FinalURL string
	Text     string
}

// Renderer loads a URL the way a browser would and returns the landing URL
// and visible text. A Renderer is reused across calls.
type Renderer interface {
	Render(ctx context.Context, url string, timeout time.Duration) (*Page, error)
}

// FetchError reports a network-level failure: timeout, connection error,
// DNS failure, or a blocked fetch.
type FetchError struct {
	URL      string
	Category result.ErrorCategory
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("fetch %s: %v (after %d attempts)", e.URL, e.Err, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Timeout reports whether the fetch failed by exceeding its deadline.
func (e *FetchError) Timeout() bool { return e.Category == result.CategoryTimeout }

// newFetchError wraps err with its error category.
func newFetchError(url string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{
		URL:      url,
		Category: result.ClassifyError(err, 0, errors.Is(err, ErrTooManyRedirects)),
		Attempts: 1,
		Err:      err,
	}
}

// CategoryOf returns the error category of err, classifying errors that did
// not come from a Session.
func CategoryOf(err error) result.ErrorCategory {
	if err == nil {
		return ""
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return result.ClassifyError(err, 0, errors.Is(err, ErrTooManyRedirects))
}
