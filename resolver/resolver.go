// Package resolver turns share links, short links and redirector links into
// the canonical long-form video URL.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/lukemcguire/vidcheck/probe"
	"github.com/lukemcguire/vidcheck/urlutil"
)

// ErrNotCanonical is returned when the landing page of a link is not a
// canonical video URL and carries no usable hint.
var ErrNotCanonical = errors.New("landing page is not a canonical video URL")

// ResolutionError reports a link that could not be resolved. The caller
// keeps the raw URL and classifies it anyway.
type ResolutionError struct {
	URL     string
	Landing string // empty if the fetch failed
	Err     error
}

func (e *ResolutionError) Error() string {
	if e.Landing != "" {
		return fmt.Sprintf("resolve %s (landed on %s): %v", e.URL, e.Landing, e.Err)
	}
	return fmt.Sprintf("resolve %s: %v", e.URL, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver resolves links for one platform. It is safe for concurrent use;
// concurrent resolutions of the same link share a single fetch, performed
// by whichever caller arrived first with its own Fetcher and context. A
// caller whose shared result failed only because the first caller's
// context was canceled retries once with its own.
type Resolver struct {
	platform urlutil.Platform
	timeout  time.Duration
	pattern  *regexp.Regexp
	group    singleflight.Group
}

// New creates a Resolver. A zero timeout uses the fetcher's default.
func New(platform urlutil.Platform, timeout time.Duration) *Resolver {
	return &Resolver{
		platform: platform,
		timeout:  timeout,
		pattern:  platform.LinkPattern(),
	}
}

// Resolve returns the canonical URL for raw using a lightweight fetch.
// Canonical input is returned without fetching.
func (r *Resolver) Resolve(ctx context.Context, f probe.Fetcher, raw string) (string, error) {
	return r.resolve(ctx, raw, func(n string) (string, string, error) {
		resp, err := f.Fetch(ctx, probe.Request{URL: n, Timeout: r.timeout})
		if err != nil {
			return "", "", err
		}
		return resp.FinalURL, resp.Body, nil
	})
}

// ResolveRendered returns the canonical URL for raw by rendering it. A
// rendered page carries no markup, so only the landing URL and links in the
// visible text are considered.
func (r *Resolver) ResolveRendered(ctx context.Context, rd probe.Renderer, raw string) (string, error) {
	return r.resolve(ctx, raw, func(n string) (string, string, error) {
		page, err := rd.Render(ctx, n, r.timeout)
		if err != nil {
			return "", "", err
		}
		return page.FinalURL, page.Text, nil
	})
}

type loadFunc func(normalized string) (landing, body string, err error)

func (r *Resolver) resolve(ctx context.Context, raw string, load loadFunc) (string, error) {
	n, err := urlutil.Normalize(raw)
	if err != nil {
		return "", &ResolutionError{URL: raw, Err: err}
	}
	if v, err := r.platform.ParseVideoURL(n); err == nil {
		return v.URL, nil
	}

	do := func() (any, error) {
		landing, body, err := load(n)
		if err != nil {
			return "", &ResolutionError{URL: raw, Err: err}
		}
		return r.fromLanding(raw, n, landing, body)
	}
	v, err, shared := r.group.Do(n, do)
	if err != nil && shared && ctx.Err() == nil && errors.Is(err, context.Canceled) {
		v, err = do()
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// fromLanding accepts the landing URL if canonical, otherwise the first
// hint in the landing body that is canonical and names the same video.
// Hints are only trusted when the landing or input carries a video id, or
// when a redirector host was involved; any other landing is a failure.
func (r *Resolver) fromLanding(raw, normalized, landing, body string) (string, error) {
	v, landingErr := r.platform.ParseVideoURL(landing)
	if landingErr == nil {
		return v.URL, nil
	}

	wantID, known := r.platform.VideoID(landing)
	if !known {
		wantID, known = r.platform.VideoID(normalized)
	}

	redirector := r.platform.IsRedirector(landing) || r.platform.IsRedirector(normalized)
	if !known && !redirector {
		return "", r.landingError(raw, landing, landingErr)
	}

	candidates := ExtractHints(strings.NewReader(body), landing)
	if redirector {
		candidates = append(candidates, ScanText(body, r.pattern)...)
	}
	for _, c := range candidates {
		hv, err := r.platform.ParseVideoURL(c)
		if err != nil {
			continue
		}
		if known && hv.ID != wantID {
			continue
		}
		return hv.URL, nil
	}

	return "", r.landingError(raw, landing, landingErr)
}

func (r *Resolver) landingError(raw, landing string, landingErr error) error {
	if errors.Is(landingErr, urlutil.ErrPlaceholderAccount) {
		return &ResolutionError{URL: raw, Landing: landing, Err: landingErr}
	}
	return &ResolutionError{URL: raw, Landing: landing, Err: ErrNotCanonical}
}
