// Package config builds the run configuration from defaults, an optional
// TOML file, the environment and command-line flags, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/lukemcguire/vidcheck/checker"
	"github.com/lukemcguire/vidcheck/liveness"
	"github.com/lukemcguire/vidcheck/probe"
	"github.com/lukemcguire/vidcheck/result"
	"github.com/lukemcguire/vidcheck/urlutil"
)

// Report formats accepted by --report-format.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Options holds every setting of a run. Flags carry no default tags: the
// defaults live in Defaults so a config file value is not reset by go-flags
// when the flag is absent.
type Options struct {
	ConfigFile string `short:"c" long:"config" description:"TOML config file" toml:"-"`

	// Input / output
	Input        string  `short:"i" long:"input" description:"Input link list, one URL per line (- for stdin)" toml:"input"`
	OutputDir    string  `short:"o" long:"output-dir" description:"Directory for canonical.txt, alive.txt and dead.txt" toml:"output_dir"`
	Report       string  `long:"report" description:"Write every link record to this file" toml:"report"`
	ReportFormat string  `long:"report-format" description:"Report format: json, csv or xlsx (default: from file extension)" toml:"report_format"`
	Extract      bool    `long:"extract" description:"Extract platform links from free text instead of reading one per line" toml:"extract"`
	Dedup        bool    `long:"dedup" description:"Drop repeated input links, keeping the first occurrence" toml:"dedup"`
	DedupFP      float64 `long:"dedup-fp" description:"False-positive rate of the dedup filter" toml:"dedup_fp"`

	// Engine
	Workers          int    `short:"w" long:"workers" description:"Number of concurrent workers" toml:"workers"`
	HandlesPerWorker int    `short:"t" long:"handles" description:"Handles (sessions or tabs) per worker" toml:"handles_per_worker"`
	Mode             string `short:"m" long:"mode" description:"Observation mode: fetch, render or oembed" toml:"mode"`

	// HTTP
	Timeout      int    `long:"timeout" description:"Per-request timeout in seconds" toml:"timeout"`
	Retries      int    `long:"retries" description:"Retries for transient fetch failures" toml:"retries"`
	RetryDelay   int    `long:"retry-delay" description:"Initial retry backoff in milliseconds" toml:"retry_delay"`
	Rate         int    `long:"rate" description:"Requests per second across all workers (0 disables limiting)" toml:"rate"`
	FixedRate    bool   `long:"fixed-rate" description:"Keep the request rate fixed instead of adapting to throttling" toml:"fixed_rate"`
	TargetRTT    int    `long:"target-rtt" description:"Round-trip time in milliseconds the adaptive limiter aims for" toml:"target_rtt"`
	UserAgent    string `long:"user-agent" description:"User-Agent header" toml:"user_agent"`
	MaxBodyBytes int64  `long:"max-body" description:"Maximum response body size in bytes" toml:"max_body_bytes"`
	Robots       bool   `long:"robots" description:"Honour robots.txt" toml:"robots"`

	// Classification
	FailClosed    bool     `long:"fail-closed" description:"Treat links whose fetch fails as dead" toml:"fail_closed"`
	MinBodyLength int      `long:"min-body" description:"Bodies shorter than this many characters are treated as alive" toml:"min_body_length"`
	DeadPhrases   []string `long:"dead-phrase" description:"Additional page text meaning the video is gone (repeatable)" toml:"dead_phrases"`

	// Surfaces
	TUI         bool   `long:"tui" description:"Show the interactive progress view" toml:"tui"`
	NoProgress  bool   `long:"no-progress" description:"Disable the progress bar in plain mode" toml:"no_progress"`
	LogLevel    string `long:"log-level" description:"Log level: debug, info, warn or error" toml:"log_level"`
	LogFile     string `long:"log-file" description:"Log file used in TUI mode" toml:"log_file"`
	LogJSON     bool   `long:"log-json" description:"Emit JSON logs instead of console output" toml:"log_json"`
	MetricsAddr string `long:"metrics-addr" description:"Serve Prometheus metrics on this address (e.g. :9090)" toml:"metrics_addr"`
	DatabaseURL string `long:"database-url" env:"DATABASE_URL" description:"Postgres URL for persisting the run" toml:"database_url"`
}

// Defaults returns the default options.
func Defaults() *Options {
	return &Options{
		Input:            "-",
		OutputDir:        ".",
		DedupFP:          1e-7,
		Workers:          40,
		HandlesPerWorker: 1,
		Mode:             "fetch",
		Timeout:          10,
		Retries:          1,
		RetryDelay:       500,
		TargetRTT:        1000,
		UserAgent:        probe.DefaultUserAgent,
		MaxBodyBytes:     2 << 20,
		MinBodyLength:    liveness.DefaultMinBodyLength,
		LogLevel:         "info",
		LogFile:          "vidcheck.log",
	}
}

// Parse builds Options from args (without the program name). A help request
// returns an error for which flags.WroteHelp is true.
func Parse(args []string) (*Options, error) {
	path, err := configPath(args)
	if err != nil {
		return nil, err
	}

	opts := Defaults()
	if path != "" {
		if err := LoadFile(path, opts); err != nil {
			return nil, err
		}
	}

	parser := flags.NewParser(opts, flags.Default)
	parser.Usage = "[OPTIONS] [input-file]"
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(rest) > 1 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(rest[1:], " "))
	}
	if len(rest) == 1 {
		opts.Input = rest[0]
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// configPath finds --config before the full parse so the file can be applied
// underneath the flags.
func configPath(args []string) (string, error) {
	var pre struct {
		ConfigFile string `short:"c" long:"config"`
	}
	parser := flags.NewParser(&pre, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(args); err != nil {
		if flags.WroteHelp(err) {
			return "", nil
		}
		return "", fmt.Errorf("parse --config: %w", err)
	}
	return pre.ConfigFile, nil
}

// LoadFile overlays the TOML file at path onto opts. Keys absent from the
// file keep their current value.
func LoadFile(path string, opts *Options) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, opts); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	opts.ConfigFile = path
	return nil
}

// Validate checks option ranges and combinations.
func (o *Options) Validate() error {
	var errs []error
	if o.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be > 0, got %d", o.Workers))
	}
	if o.HandlesPerWorker <= 0 {
		errs = append(errs, fmt.Errorf("handles per worker must be > 0, got %d", o.HandlesPerWorker))
	}
	if _, err := checker.ParseMode(o.Mode); err != nil {
		errs = append(errs, fmt.Errorf("mode %q: %w", o.Mode, err))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be > 0, got %d", o.Timeout))
	}
	if o.Retries < 0 {
		errs = append(errs, fmt.Errorf("retries must be >= 0, got %d", o.Retries))
	}
	if o.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("retry delay must be >= 0, got %d", o.RetryDelay))
	}
	if o.Rate < 0 {
		errs = append(errs, fmt.Errorf("rate must be >= 0, got %d", o.Rate))
	}
	if o.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max body must be > 0, got %d", o.MaxBodyBytes))
	}
	if o.MinBodyLength < 0 {
		errs = append(errs, fmt.Errorf("min body must be >= 0, got %d", o.MinBodyLength))
	}
	if o.Dedup && (o.DedupFP <= 0 || o.DedupFP >= 1) {
		errs = append(errs, fmt.Errorf("dedup false-positive rate must be between 0 and 1, got %g", o.DedupFP))
	}
	if o.Report != "" {
		if _, err := o.ReportKind(); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := zerolog.ParseLevel(o.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level %q: %w", o.LogLevel, err))
	}
	return errors.Join(errs...)
}

// ReportKind returns the report format, inferred from the report file
// extension when --report-format is not set.
func (o *Options) ReportKind() (string, error) {
	format := strings.ToLower(o.ReportFormat)
	if format == "" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(o.Report)), ".")
	}
	switch format {
	case FormatJSON, FormatCSV, FormatXLSX:
		return format, nil
	}
	return "", fmt.Errorf("report format %q: must be json, csv or xlsx", format)
}

// RequestTimeout returns the per-request timeout.
func (o *Options) RequestTimeout() time.Duration {
	return time.Duration(o.Timeout) * time.Second
}

// LogLevelValue returns the parsed log level. Validate has already checked it.
func (o *Options) LogLevelValue() zerolog.Level {
	lvl, err := zerolog.ParseLevel(o.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Platform returns the platform links are checked against.
func (o *Options) Platform() urlutil.Platform {
	return urlutil.TikTok
}

// Policy returns the liveness policy.
func (o *Options) Policy() liveness.Policy {
	p := liveness.DefaultPolicy()
	p.Platform = o.Platform()
	p.MinBodyLength = o.MinBodyLength
	if len(o.DeadPhrases) > 0 {
		p.DeadPhrases = append(append([]string{}, p.DeadPhrases...), o.DeadPhrases...)
	}
	if o.FailClosed {
		p.OnFetchError = result.OutcomeDead
	}
	return p
}

// SessionConfig returns the settings shared by every HTTP session.
func (o *Options) SessionConfig() probe.SessionConfig {
	cfg := probe.DefaultSessionConfig()
	cfg.UserAgent = o.UserAgent
	cfg.Timeout = o.RequestTimeout()
	cfg.MaxBodyBytes = o.MaxBodyBytes
	cfg.Retry = probe.RetryPolicy{
		MaxRetries: o.Retries,
		BaseDelay:  time.Duration(o.RetryDelay) * time.Millisecond,
		MaxDelay:   10 * time.Second,
	}
	if o.Rate > 0 {
		cfg.Limiter = probe.NewAdaptiveLimiter(o.Rate, time.Duration(o.TargetRTT)*time.Millisecond)
		if o.FixedRate {
			cfg.Limiter.SetRate(o.Rate)
		}
	}
	if o.Robots {
		cfg.Robots = probe.NewRobotsChecker(nil, o.UserAgent)
	}
	return cfg
}

// CheckerConfig returns the engine configuration.
func (o *Options) CheckerConfig(logger *zerolog.Logger, rec checker.Recorder) checker.Config {
	mode, _ := checker.ParseMode(o.Mode)
	return checker.Config{
		Workers:          o.Workers,
		HandlesPerWorker: o.HandlesPerWorker,
		RequestTimeout:   o.RequestTimeout(),
		Mode:             mode,
		Platform:         o.Platform(),
		Policy:           o.Policy(),
		Logger:           logger,
		Metrics:          rec,
	}
}
