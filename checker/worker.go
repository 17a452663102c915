package checker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lukemcguire/vidcheck/liveness"
	"github.com/lukemcguire/vidcheck/pool"
	"github.com/lukemcguire/vidcheck/probe"
	"github.com/lukemcguire/vidcheck/result"
	"github.com/lukemcguire/vidcheck/urlutil"
)

// checkLink resolves and classifies one link with handle h. It reports
// completed=false only when ctx was canceled before the link could be
// observed; every other failure still yields a classified record.
func (c *Checker) checkLink(ctx context.Context, h pool.Handle, worker int, raw string) (rec result.LinkRecord, completed bool) {
	start := time.Now()
	rec = result.LinkRecord{RawURL: raw, Worker: worker}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Int("worker", worker).Str("url", raw).Interface("panic", r).Msg("link check panicked")
			d := c.cfg.Policy.Classify(liveness.Observation{Err: fmt.Errorf("panic: %v", r)})
			rec.Outcome, rec.Reason = d.Outcome, d.Reason
			rec.Error = fmt.Sprintf("panic: %v", r)
			rec.ErrorCategory = result.CategoryUnknown
			completed = true
		}
		rec.Elapsed = time.Since(start)
	}()

	target := raw
	if n, err := urlutil.Normalize(raw); err == nil {
		target = n
	}

	canonical, err := c.resolve(ctx, h, raw)
	if err != nil {
		rec.ResolveError = err.Error()
		c.log.Debug().Int("worker", worker).Err(err).Str("url", raw).Msg("resolution failed, classifying raw URL")
	} else {
		rec.CanonicalURL = canonical
		target = canonical
	}

	obs, d := c.observe(ctx, h, target)
	if obs.Err != nil && ctx.Err() != nil {
		return rec, false
	}

	rec.Outcome, rec.Reason = d.Outcome, d.Reason
	rec.StatusCode = obs.StatusCode
	if obs.Err != nil {
		rec.Error = obs.Err.Error()
		rec.ErrorCategory = probe.CategoryOf(obs.Err)
	}
	return rec, true
}

func (c *Checker) resolve(ctx context.Context, h pool.Handle, raw string) (string, error) {
	if c.cfg.Mode == ModeRender {
		return c.resolver.ResolveRendered(ctx, h, raw)
	}
	return c.resolver.Resolve(ctx, h, raw)
}

func (c *Checker) observe(ctx context.Context, h pool.Handle, target string) (liveness.Observation, liveness.Decision) {
	if c.cfg.Mode == ModeRender {
		obs := liveness.FromPage(h.Render(ctx, target, c.cfg.RequestTimeout))
		return obs, c.cfg.Policy.ClassifyRendered(obs)
	}
	if c.cfg.Mode == ModeOEmbed {
		if u, ok := c.cfg.Platform.OEmbedURL(target); ok {
			obs := liveness.FromResponse(h.Fetch(ctx, probe.Request{URL: u, Header: oembedHeader, Timeout: c.cfg.RequestTimeout}))
			return obs, c.cfg.Policy.ClassifyOEmbed(obs)
		}
		// no video id to ask about; observe the page itself
	}
	obs := liveness.FromResponse(h.Fetch(ctx, probe.Request{URL: target, Timeout: c.cfg.RequestTimeout}))
	return obs, c.cfg.Policy.Classify(obs)
}

var oembedHeader = http.Header{"Accept": {"application/json"}}
