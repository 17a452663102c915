package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/lukemcguire/vidcheck/result"
)

// DefaultUserAgent is the mobile app browser the platform serves full pages to.
const DefaultUserAgent = "Mozilla/5.0 (Linux; Android 12; Pixel 5) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Version/4.0 Chrome/107.0.5304.141 Mobile Safari/537.36 " +
	"AppName/TikTok AppVersion/34.1.3"

// SessionConfig holds the settings shared by every session of a run.
type SessionConfig struct {
	UserAgent      string
	AcceptLanguage string
	Header         http.Header       // extra default headers
	Timeout        time.Duration     // per-fetch timeout, retries included (default 10s)
	MaxBodyBytes   int64             // response body cap (default 2 MiB)
	MaxRedirects   int               // redirect cap (default 10)
	Retry          RetryPolicy       // zero value disables retries
	Limiter        *AdaptiveLimiter  // optional, shared across sessions
	Robots         *RobotsChecker    // optional, shared across sessions
	Transport      http.RoundTripper // optional, mainly for tests
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: "en-US,en;q=0.9",
		Timeout:        10 * time.Second,
		MaxBodyBytes:   2 << 20,
		MaxRedirects:   10,
		Retry:          DefaultRetryPolicy(),
	}
}

// Session is a reusable fetch handle: an HTTP client with its own cookie jar
// and connection pool. A Session is meant to be owned by one worker and
// used for one fetch at a time.
type Session struct {
	id     int
	cfg    SessionConfig
	client *http.Client
	header http.Header
}

// NewSession creates a session. The id is used only for diagnostics.
func NewSession(id int, cfg SessionConfig) (*Session, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 2 << 20
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("session %d: create cookie jar: %w", id, err)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = newTransport()
	}

	maxRedirects := cfg.MaxRedirects
	client := &http.Client{
		Jar:       jar,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}

	header := http.Header{}
	for k, v := range cfg.Header {
		header[k] = append([]string(nil), v...)
	}
	header.Set("User-Agent", cfg.UserAgent)
	if header.Get("Accept") == "" {
		header.Set("Accept", "text/html,application/xhtml+xml")
	}
	if cfg.AcceptLanguage != "" {
		header.Set("Accept-Language", cfg.AcceptLanguage)
	}

	return &Session{id: id, cfg: cfg, client: client, header: header}, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// ID returns the session id.
func (s *Session) ID() int { return s.id }

// Fetch performs a GET following redirects, retrying transient failures
// with exponential backoff. The request timeout bounds the whole fetch,
// retries and backoff included. Network failures are returned as
// *FetchError. A response with any status code is a successful fetch.
func (s *Session) Fetch(ctx context.Context, req Request) (*Response, error) {
	if s.cfg.Robots != nil {
		// robots errors are fail-open
		if allowed, _ := s.cfg.Robots.Allowed(ctx, req.URL); !allowed {
			return nil, &FetchError{URL: req.URL, Category: result.CategoryDisallowed, Attempts: 1, Err: ErrDisallowed}
		}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	policy := s.cfg.Retry
	backoff := policy.BaseDelay
	var (
		resp     *Response
		err      error
		attempts int
	)

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		attempts = attempt + 1

		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, &FetchError{URL: req.URL, Category: CategoryOf(ctx.Err()), Attempts: attempt, Err: ctx.Err()}
			case <-time.After(backoff):
				backoff = min(backoff*2, policy.MaxDelay)
			}
		}

		resp, err = s.do(ctx, req)
		if !shouldRetry(resp, err) || ctx.Err() != nil {
			break
		}
	}

	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.Attempts = attempts
		}
		return nil, err
	}
	return resp, nil
}

// do performs a single attempt within the fetch deadline carried by ctx.
func (s *Session) do(ctx context.Context, req Request) (*Response, error) {
	if s.cfg.Limiter != nil {
		if err := s.cfg.Limiter.Wait(ctx); err != nil {
			return nil, newFetchError(req.URL, fmt.Errorf("rate limiter wait: %w", err))
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, newFetchError(req.URL, err)
	}
	for k, v := range s.header {
		httpReq.Header[k] = v
	}
	for k, v := range req.Header {
		httpReq.Header[k] = v
	}

	start := time.Now()
	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, newFetchError(req.URL, err)
	}
	defer httpResp.Body.Close()

	body, err := readAllLimit(httpResp.Body, s.cfg.MaxBodyBytes)
	elapsed := time.Since(start)
	if s.cfg.Limiter != nil {
		s.cfg.Limiter.Observe(elapsed, httpResp.StatusCode)
	}
	if err != nil {
		return nil, newFetchError(req.URL, fmt.Errorf("read body: %w", err))
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		FinalURL:   httpResp.Request.URL.String(),
		Body:       string(body),
		Elapsed:    elapsed,
	}, nil
}

// Close releases idle connections held by the session.
func (s *Session) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// readAllLimit reads at most limit bytes; larger bodies are truncated.
func readAllLimit(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}
