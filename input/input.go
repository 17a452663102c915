// Package input loads link lists: one URL per line, or links pulled out of
// free text, with optional order-preserving deduplication.
package input

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/lukemcguire/vidcheck/urlutil"
)

// maxLineBytes bounds a single input line. Pasted chat exports can carry
// very long lines in extract mode.
const maxLineBytes = 4 << 20

// Options controls how Load interprets its input.
type Options struct {
	// Extract pulls links matching Pattern out of arbitrary text instead
	// of treating every line as one link.
	Extract bool
	// Pattern is the link pattern for extract mode. Defaults to the TikTok
	// link pattern.
	Pattern *regexp.Regexp
	// Dedup drops repeated links, keeping the first occurrence.
	Dedup bool
	// DedupFP is the bloom filter false-positive rate (default 1e-7).
	DedupFP float64
}

// Load reads links from r according to opts.
func Load(r io.Reader, opts Options) ([]string, error) {
	var (
		links []string
		err   error
	)
	if opts.Extract {
		pattern := opts.Pattern
		if pattern == nil {
			pattern = urlutil.TikTok.LinkPattern()
		}
		links, err = Extract(r, pattern)
	} else {
		links, err = ReadLines(r)
	}
	if err != nil {
		return nil, err
	}

	if !opts.Dedup {
		return links, nil
	}
	d, err := NewDeduper(uint(len(links)), opts.DedupFP)
	if err != nil {
		return nil, err
	}
	unique := Unique(links, d)
	if err := d.Close(); err != nil {
		return nil, err
	}
	return unique, nil
}

// ReadLines returns the non-blank lines of r with surrounding whitespace
// removed. Lines starting with "#" are comments.
func ReadLines(r io.Reader) ([]string, error) {
	var links []string
	err := scanLines(r, func(line string) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			return
		}
		links = append(links, line)
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

// Extract returns every match of pattern in r, in order of appearance.
// Trailing sentence punctuation glued to a link is dropped.
func Extract(r io.Reader, pattern *regexp.Regexp) ([]string, error) {
	var links []string
	err := scanLines(r, func(line string) {
		for _, m := range pattern.FindAllString(line, -1) {
			if m = trimTrailingPunct(m); m != "" {
				links = append(links, m)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return links, nil
}

func scanLines(r io.Reader, fn func(string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func trimTrailingPunct(s string) string {
	return strings.TrimRight(s, ".,;:!?)]}'\"")
}
