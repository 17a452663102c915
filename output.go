package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/lukemcguire/vidcheck/checker"
	"github.com/lukemcguire/vidcheck/config"
	"github.com/lukemcguire/vidcheck/result"
)

// Partition file names written to the output directory.
const (
	canonicalFile = "canonical.txt"
	aliveFile     = "alive.txt"
	deadFile      = "dead.txt"
)

// runPlain runs the check with an optional mpb progress bar on stderr.
func runPlain(ctx context.Context, c *checker.Checker, links []string, progressCh chan checker.CheckEvent, showBar bool) (*result.Result, error) {
	done := make(chan struct{})
	var p *mpb.Progress
	if showBar {
		p = mpb.New(mpb.WithOutput(os.Stderr), mpb.WithWidth(60))
		bar := p.AddBar(int64(len(links)),
			mpb.PrependDecorators(
				decor.Name("checking", decor.WCSyncWidth),
				decor.CountersNoUnit(" [%d / %d]", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WCSyncSpace),
				decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO, decor.WCSyncSpace), "done"),
			),
		)
		go func() {
			defer close(done)
			for evt := range progressCh {
				bar.SetCurrent(int64(evt.Checked + evt.Unprocessed))
			}
			bar.SetTotal(-1, true)
		}()
	} else {
		go func() {
			defer close(done)
			for range progressCh {
			}
		}()
	}

	res, err := c.Run(ctx, links)
	close(progressCh)
	<-done
	if p != nil {
		p.Wait()
	}
	return res, err
}

// writeOutputs writes the three partition files and the optional report.
func writeOutputs(opts *config.Options, res *result.Result) error {
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	parts := []struct {
		name string
		urls []string
	}{
		{canonicalFile, res.Canonical},
		{aliveFile, res.Alive},
		{deadFile, res.Dead},
	}
	for _, part := range parts {
		path := filepath.Join(opts.OutputDir, part.name)
		if err := writeFile(path, func(f *os.File) error { return result.WriteLines(f, part.urls) }); err != nil {
			return err
		}
	}

	if opts.Report == "" {
		return nil
	}
	kind, err := opts.ReportKind()
	if err != nil {
		return err
	}
	return writeFile(opts.Report, func(f *os.File) error {
		switch kind {
		case config.FormatCSV:
			return result.WriteCSV(f, res.Records)
		case config.FormatXLSX:
			return result.WriteXLSX(f, res)
		default:
			return result.WriteJSON(f, res.Records)
		}
	})
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
