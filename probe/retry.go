package probe

import (
	"net/http"
	"time"

	"github.com/lukemcguire/vidcheck/result"
)

// RetryPolicy configures retry behavior for failed fetches.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retries (1 = 2 total attempts)
	BaseDelay  time.Duration // Initial backoff delay
	MaxDelay   time.Duration // Maximum backoff cap
}

// DefaultRetryPolicy returns a RetryPolicy with one retry, 500ms base delay
// and a 10s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 1,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
	}
}

// shouldRetry determines if a fetch attempt should be retried.
// Returns true for:
// - Transient network errors (timeout, connection refused or reset, DNS failure)
// - HTTP 429 (rate limited)
// - HTTP 5xx (server errors)
// Returns false for any other status, for blocked fetches and for canceled
// contexts.
func shouldRetry(resp *Response, err error) bool {
	if err != nil {
		switch CategoryOf(err) {
		case result.CategoryTimeout, result.CategoryDNSFailure,
			result.CategoryConnectionRefused, result.CategoryConnectionReset:
			return true
		default:
			return false
		}
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
}
