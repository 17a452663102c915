package checker

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/lukemcguire/vidcheck/liveness"
	"github.com/lukemcguire/vidcheck/result"
	"github.com/lukemcguire/vidcheck/urlutil"
)

// ErrNoWorkers is returned by New when the worker count is not positive.
var ErrNoWorkers = errors.New("worker count must be at least 1")

// Mode selects how links are observed.
type Mode int

const (
	// ModeFetch uses lightweight HTTP fetches.
	ModeFetch Mode = iota
	// ModeRender renders pages and applies the stricter render rules.
	ModeRender
	// ModeOEmbed asks the platform's oEmbed endpoint about each video.
	ModeOEmbed
)

func (m Mode) String() string {
	switch m {
	case ModeRender:
		return "render"
	case ModeOEmbed:
		return "oembed"
	}
	return "fetch"
}

// ParseMode parses "fetch", "render" or "oembed".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "fetch":
		return ModeFetch, nil
	case "render":
		return ModeRender, nil
	case "oembed":
		return ModeOEmbed, nil
	}
	return ModeFetch, errors.New("mode must be fetch, render or oembed")
}

// Recorder receives run telemetry. Implementations must be safe for
// concurrent use.
type Recorder interface {
	LinkChecked(rec result.LinkRecord)
	WorkerStarted(worker int)
	WorkerFinished(worker int)
	WorkerFailed(worker int)
}

// Config holds checker configuration.
type Config struct {
	Workers          int              // W: concurrent workers (required, >= 1)
	HandlesPerWorker int              // T: handles per worker (default 1)
	RequestTimeout   time.Duration    // per-fetch timeout (default 10s)
	Mode             Mode             // fetch, render or oembed
	Platform         urlutil.Platform // zero value means urlutil.TikTok
	Policy           liveness.Policy  // zero value means liveness.DefaultPolicy
	Logger           *zerolog.Logger  // nil disables logging
	Metrics          Recorder         // nil disables telemetry
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:          8,
		HandlesPerWorker: 1,
		RequestTimeout:   10 * time.Second,
		Mode:             ModeFetch,
		Platform:         urlutil.TikTok,
		Policy:           liveness.DefaultPolicy(),
	}
}

type nopRecorder struct{}

func (nopRecorder) LinkChecked(result.LinkRecord) {}
func (nopRecorder) WorkerStarted(int)             {}
func (nopRecorder) WorkerFinished(int)            {}
func (nopRecorder) WorkerFailed(int)              {}
