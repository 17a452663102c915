// Package checker runs the liveness pipeline over a list of links: it
// partitions the input across a fixed set of workers, resolves each link to
// its canonical URL, classifies it, and aggregates the outcomes.
package checker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/vidcheck/liveness"
	"github.com/lukemcguire/vidcheck/pool"
	"github.com/lukemcguire/vidcheck/resolver"
	"github.com/lukemcguire/vidcheck/result"
)

// ErrDegraded is wrapped by the error Run returns when one or more workers
// failed setup. The accompanying Result is complete for the other workers.
var ErrDegraded = errors.New("run degraded: some workers failed setup")

// Checker coordinates link checking across a fixed worker pool.
type Checker struct {
	cfg        Config
	factory    pool.Factory
	resolver   *resolver.Resolver
	log        zerolog.Logger
	metrics    Recorder
	progressCh chan<- CheckEvent

	total       int
	checked     atomic.Int64
	alive       atomic.Int64
	dead        atomic.Int64
	unprocessed atomic.Int64
}

// New creates a Checker. The factory creates the run's handles. The
// progressCh parameter is optional; pass nil to disable progress events.
// The caller owns progressCh and closes it after Run returns.
func New(cfg Config, factory pool.Factory, progressCh chan<- CheckEvent) (*Checker, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrNoWorkers, cfg.Workers)
	}
	if factory == nil {
		return nil, errors.New("checker needs a handle factory")
	}
	defaults := DefaultConfig()
	if cfg.HandlesPerWorker <= 0 {
		cfg.HandlesPerWorker = defaults.HandlesPerWorker
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.Platform.Name == "" && cfg.Platform.VideoSegment == "" {
		cfg.Platform = defaults.Platform
	}
	if cfg.Policy.MinBodyLength == 0 && cfg.Policy.DeadPhrases == nil && cfg.Policy.BotSignatures == nil {
		cfg.Policy = liveness.DefaultPolicy()
	}
	cfg.Policy.Platform = cfg.Platform

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	var metrics Recorder = nopRecorder{}
	if cfg.Metrics != nil {
		metrics = cfg.Metrics
	}

	return &Checker{
		cfg:        cfg,
		factory:    factory,
		resolver:   resolver.New(cfg.Platform, cfg.RequestTimeout),
		log:        log,
		metrics:    metrics,
		progressCh: progressCh,
	}, nil
}

// Run checks every link and returns the aggregated result. Every link ends
// up in exactly one of Result.Alive, Result.Dead or Result.Unprocessed.
// Links are unprocessed only when their worker failed setup or ctx was
// canceled; in both cases Run also returns a non-nil error alongside the
// Result.
func (c *Checker) Run(ctx context.Context, links []string) (*result.Result, error) {
	start := time.Now()
	c.total = len(links)

	c.log.Info().
		Int("links", len(links)).
		Int("workers", c.cfg.Workers).
		Int("handles_per_worker", c.cfg.HandlesPerWorker).
		Stringer("mode", c.cfg.Mode).
		Msg("run started")

	p, err := pool.New(ctx, c.cfg.Workers, c.cfg.HandlesPerWorker, c.factory)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			c.log.Warn().Err(closeErr).Msg("close pool")
		}
	}()

	collector := result.NewCollector()
	chunks := Partition(links, c.cfg.Workers)
	skipped := make([][]string, len(chunks))

	// Workers never fail the group: per-link faults are recovered and
	// setup failures only affect the failed worker's chunk.
	var group errgroup.Group
	for w, chunk := range chunks {
		group.Go(func() error {
			skipped[w] = c.runWorker(ctx, p, w, chunk, collector)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("wait for workers: %w", err)
	}

	var unprocessed []string
	for _, s := range skipped {
		unprocessed = append(unprocessed, s...)
	}
	res := result.NewResult(collector, unprocessed, len(links), time.Since(start))

	c.log.Info().
		Int("alive", res.Stats.Alive).
		Int("dead", res.Stats.Dead).
		Int("canonical", res.Stats.Canonical).
		Int("unprocessed", res.Stats.Unprocessed).
		Dur("duration", res.Stats.Duration).
		Msg("run finished")

	var errs []error
	if setupErrs := p.SetupErrors(); len(setupErrs) > 0 {
		errs = append(errs, fmt.Errorf("%w: %w", ErrDegraded, errors.Join(setupErrs...)))
	}
	if ctxErr := ctx.Err(); ctxErr != nil && len(unprocessed) > 0 {
		errs = append(errs, fmt.Errorf("run interrupted: %w", ctxErr))
	}
	return res, errors.Join(errs...)
}

// runWorker processes chunk sequentially with the worker's own handles and
// returns the links it could not process.
func (c *Checker) runWorker(ctx context.Context, p *pool.Pool, w int, chunk []string, agg result.Aggregator) []string {
	log := c.log.With().Int("worker", w).Logger()

	slot, err := p.Slot(w)
	if err != nil {
		log.Error().Err(err).Int("links", len(chunk)).Msg("worker setup failed, links left unprocessed")
		c.metrics.WorkerFailed(w)
		c.skip(w, len(chunk), err)
		return chunk
	}

	c.metrics.WorkerStarted(w)
	defer c.metrics.WorkerFinished(w)

	for pos, raw := range chunk {
		if ctx.Err() != nil {
			c.skip(w, len(chunk)-pos, ctx.Err())
			return chunk[pos:]
		}

		rec, completed := c.checkLink(ctx, slot.Handle(pos), w, raw)
		if !completed {
			c.skip(w, len(chunk)-pos, ctx.Err())
			return chunk[pos:]
		}

		if err := agg.Append(rec); err != nil {
			log.Error().Err(err).Str("url", raw).Msg("aggregate record")
			continue
		}
		c.metrics.LinkChecked(rec)
		c.report(rec)

		log.Debug().
			Str("url", rec.URL()).
			Stringer("outcome", rec.Outcome).
			Str("reason", string(rec.Reason)).
			Int("status", rec.StatusCode).
			Msg("link checked")
	}
	return nil
}

func (c *Checker) report(rec result.LinkRecord) {
	checked := c.checked.Add(1)
	if rec.Outcome == result.OutcomeDead {
		c.dead.Add(1)
	} else {
		c.alive.Add(1)
	}
	if c.progressCh == nil {
		return
	}
	c.progressCh <- CheckEvent{
		URL:           rec.URL(),
		Worker:        rec.Worker,
		Outcome:       rec.Outcome,
		Reason:        rec.Reason,
		StatusCode:    rec.StatusCode,
		Error:         rec.Error,
		ErrorCategory: rec.ErrorCategory,
		Checked:       int(checked),
		Alive:         int(c.alive.Load()),
		Dead:          int(c.dead.Load()),
		Unprocessed:   int(c.unprocessed.Load()),
		Total:         c.total,
	}
}

func (c *Checker) skip(w, n int, cause error) {
	unprocessed := c.unprocessed.Add(int64(n))
	if c.progressCh == nil || n == 0 {
		return
	}
	evt := CheckEvent{
		Worker:      w,
		Checked:     int(c.checked.Load()),
		Alive:       int(c.alive.Load()),
		Dead:        int(c.dead.Load()),
		Unprocessed: int(unprocessed),
		Total:       c.total,
	}
	if cause != nil {
		evt.Error = cause.Error()
	}
	c.progressCh <- evt
}
