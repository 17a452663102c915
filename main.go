// Package main provides the vidcheck CLI entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/lukemcguire/vidcheck/checker"
	"github.com/lukemcguire/vidcheck/config"
	"github.com/lukemcguire/vidcheck/input"
	"github.com/lukemcguire/vidcheck/metrics"
	"github.com/lukemcguire/vidcheck/pool"
	"github.com/lukemcguire/vidcheck/result"
	"github.com/lukemcguire/vidcheck/store"
	"github.com/lukemcguire/vidcheck/tui"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitDegraded = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := config.Parse(args)
	if err != nil {
		if flags.WroteHelp(err) {
			return exitOK
		}
		var flagsErr *flags.Error
		if !errors.As(err, &flagsErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return exitError
	}

	started := time.Now()
	runInfo := store.NewRun(opts.Mode, opts.Workers, started)

	logger, closeLog, err := newLogger(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	defer closeLog()
	logger = logger.With().Str("run_id", runInfo.ID.String()).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	links, err := loadLinks(opts)
	if err != nil {
		logger.Error().Err(err).Msg("load input")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	if len(links) == 0 {
		fmt.Fprintln(os.Stderr, "No links in input")
		return exitOK
	}

	var recorder checker.Recorder
	if opts.MetricsAddr != "" {
		rec := metrics.NewRecorder()
		recorder = rec
		go func() {
			if err := rec.Serve(ctx, opts.MetricsAddr); err != nil {
				logger.Error().Err(err).Msg("metrics server")
			}
		}()
		logger.Info().Str("addr", opts.MetricsAddr).Msg("serving metrics")
	}

	progressCh := make(chan checker.CheckEvent, 100)
	c, err := checker.New(opts.CheckerConfig(&logger, recorder), pool.SessionFactory(opts.SessionConfig()), progressCh)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}

	var (
		res    *result.Result
		runErr error
	)
	if opts.TUI {
		m, err := runTUI(ctx, c, links, progressCh)
		if err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
			return exitError
		}
		res, runErr = m.GetResult(), m.Err()
	} else {
		res, runErr = runPlain(ctx, c, links, progressCh, !opts.NoProgress)
	}
	if res == nil {
		if runErr == nil {
			runErr = errors.New("run aborted before completion")
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return exitError
	}

	if err := writeOutputs(opts, res); err != nil {
		logger.Error().Err(err).Msg("write outputs")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitError
	}
	if !opts.TUI {
		result.PrintResults(os.Stdout, res)
	}

	runInfo.FinishedAt = time.Now()
	runInfo.Degraded = errors.Is(runErr, checker.ErrDegraded)
	if opts.DatabaseURL != "" {
		// The run context may already be canceled; persisting still has to happen.
		if err := persist(context.WithoutCancel(ctx), opts.DatabaseURL, runInfo, res); err != nil {
			logger.Error().Err(err).Msg("persist run")
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return exitError
		}
		logger.Info().Msg("run persisted")
	}

	switch {
	case runErr == nil:
		return exitOK
	case errors.Is(runErr, context.Canceled):
		fmt.Fprintln(os.Stderr, "Run interrupted; partial results written")
		return exitError
	case runInfo.Degraded:
		fmt.Fprintf(os.Stderr, "Warning: %v\n", runErr)
		return exitDegraded
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return exitError
	}
}

// newLogger builds the run logger. In TUI mode logs go to a file so they do
// not corrupt the terminal.
func newLogger(opts *config.Options) (zerolog.Logger, func(), error) {
	var (
		out     io.Writer = os.Stderr
		closeFn           = func() {}
	)
	if opts.TUI {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), closeFn, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}
	if !opts.LogJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: opts.TUI}
	}
	logger := zerolog.New(out).Level(opts.LogLevelValue()).With().Timestamp().Logger()
	return logger, closeFn, nil
}

func loadLinks(opts *config.Options) ([]string, error) {
	in := io.Reader(os.Stdin)
	if opts.Input != "-" {
		f, err := os.Open(opts.Input)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}
	return input.Load(in, input.Options{
		Extract: opts.Extract,
		Pattern: opts.Platform().LinkPattern(),
		Dedup:   opts.Dedup,
		DedupFP: opts.DedupFP,
	})
}

// runTUI runs the check inside the Bubble Tea program. The model closes
// progressCh.
func runTUI(ctx context.Context, c *checker.Checker, links []string, progressCh chan checker.CheckEvent) (tui.Model, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(tui.NewModel(ctx, cancel, c, links, progressCh))
	finalModel, err := program.Run()
	if err != nil {
		return tui.Model{}, err
	}
	return finalModel.(tui.Model), nil
}

func persist(ctx context.Context, dsn string, run store.Run, res *result.Result) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	s, err := store.Open(ctx, dsn, 2)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	return s.SaveRun(ctx, run, res)
}
