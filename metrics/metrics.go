// Package metrics exports run telemetry to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lukemcguire/vidcheck/result"
)

const namespace = "vidcheck"

// Recorder collects per-link and per-worker metrics on its own registry. It
// is safe for concurrent use by every worker of a run.
type Recorder struct {
	registry *prometheus.Registry

	links         *prometheus.CounterVec
	linkDuration  *prometheus.HistogramVec
	fetchErrors   *prometheus.CounterVec
	statusClasses *prometheus.CounterVec
	activeWorkers prometheus.Gauge
	workerFails   prometheus.Counter
}

// NewRecorder creates a Recorder with process and Go runtime collectors
// registered alongside the run metrics.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		links: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_checked_total",
			Help:      "Links classified, by outcome and reason.",
		}, []string{"outcome", "reason"}),
		linkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "link_check_duration_seconds",
			Help:      "Time spent resolving and classifying one link.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"outcome"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Failed fetches, by error category.",
		}, []string{"category"}),
		statusClasses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "responses_total",
			Help:      "Classification responses, by HTTP status class.",
		}, []string{"status"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_active",
			Help:      "Workers currently processing their chunk.",
		}),
		workerFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_setup_failures_total",
			Help:      "Workers that could not acquire their handles.",
		}),
	}
	r.registry.MustRegister(
		r.links,
		r.linkDuration,
		r.fetchErrors,
		r.statusClasses,
		r.activeWorkers,
		r.workerFails,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// LinkChecked records one classified link.
func (r *Recorder) LinkChecked(rec result.LinkRecord) {
	outcome := rec.Outcome.String()
	r.links.WithLabelValues(outcome, string(rec.Reason)).Inc()
	r.linkDuration.WithLabelValues(outcome).Observe(rec.Elapsed.Seconds())
	r.statusClasses.WithLabelValues(StatusLabel(rec.StatusCode)).Inc()
	if rec.ErrorCategory != "" {
		r.fetchErrors.WithLabelValues(string(rec.ErrorCategory)).Inc()
	}
}

// WorkerStarted marks a worker as active.
func (r *Recorder) WorkerStarted(int) { r.activeWorkers.Inc() }

// WorkerFinished marks a worker as done.
func (r *Recorder) WorkerFinished(int) { r.activeWorkers.Dec() }

// WorkerFailed counts a worker setup failure.
func (r *Recorder) WorkerFailed(int) { r.workerFails.Inc() }

// Handler returns the /metrics handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	}
}

// StatusLabel maps an HTTP status to a bounded label value ("2xx", "4xx").
func StatusLabel(code int) string {
	if code <= 0 {
		return "none"
	}
	return strconv.Itoa(code/100) + "xx"
}
