package input

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"

	"github.com/lukemcguire/vidcheck/urlutil"
)

const (
	// DefaultDedupFP is the false-positive rate used when none is given. A
	// false positive silently drops a distinct link, so it is kept tiny.
	DefaultDedupFP = 1e-7

	minDedupCapacity = 1000
)

// Deduper is a disk-backed bloom filter over normalized links. The filter
// state is mirrored into a memory-mapped temp file so very large inputs do
// not need to keep a second copy of every URL on the heap.
type Deduper struct {
	mu        sync.Mutex
	filter    *bloom.BloomFilter
	file      *os.File
	mmap      mmap.MMap
	tmpPath   string
	count     uint64 // links added since last sync
	syncEvery uint64
	lastErr   error
}

// NewDeduper sizes a filter for expected links at false-positive rate fp.
func NewDeduper(expected uint, fp float64) (*Deduper, error) {
	if expected < minDedupCapacity {
		expected = minDedupCapacity
	}
	if fp <= 0 || fp >= 1 {
		fp = DefaultDedupFP
	}
	filter := bloom.NewWithEstimates(expected, fp)

	data, err := filter.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}

	tmpFile, err := os.CreateTemp("", "vidcheck-dedup-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	cleanup := func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}

	if err := tmpFile.Truncate(int64(len(data))); err != nil {
		cleanup()
		return nil, fmt.Errorf("truncate temp file: %w", err)
	}
	mapped, err := mmap.MapRegion(tmpFile, len(data), mmap.RDWR, 0, 0)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("mmap temp file: %w", err)
	}
	copy(mapped, data)

	return &Deduper{
		filter:    filter,
		file:      tmpFile,
		mmap:      mapped,
		tmpPath:   tmpPath,
		syncEvery: 1000,
	}, nil
}

// FirstSeen reports whether link has not been seen before and records it.
// Links are compared in normalized form, so "vm.tiktok.com/x/" and
// "https://vm.tiktok.com/x" are the same link.
func (d *Deduper) FirstSeen(link string) bool {
	key := link
	if n, err := urlutil.Normalize(link); err == nil {
		key = n
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestOrAddString(key) {
		return false
	}
	d.count++
	if d.count >= d.syncEvery {
		if err := d.syncLocked(); err != nil {
			d.lastErr = err
		}
	}
	return true
}

// syncLocked writes the filter to the mapped file. Must be called with mu held.
func (d *Deduper) syncLocked() error {
	data, err := d.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}
	if len(data) <= len(d.mmap) {
		copy(d.mmap, data)
	}
	if err := d.mmap.Flush(); err != nil {
		return fmt.Errorf("flush mmap: %w", err)
	}
	d.count = 0
	return nil
}

// LastError returns the last error from a periodic sync.
func (d *Deduper) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Close releases the mapping and removes the temp file.
func (d *Deduper) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	if d.lastErr != nil {
		errs = append(errs, d.lastErr)
	}
	if d.mmap != nil {
		if d.count > 0 {
			if err := d.syncLocked(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := d.mmap.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		d.mmap = nil
	}
	if d.file != nil {
		if err := d.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		d.file = nil
	}
	if d.tmpPath != "" {
		if err := os.Remove(d.tmpPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove temp file: %w", err))
		}
		d.tmpPath = ""
	}

	if len(errs) > 0 {
		return fmt.Errorf("close deduper: %w", errors.Join(errs...))
	}
	return nil
}

// Unique returns links without repeats, keeping first occurrences in order.
func Unique(links []string, d *Deduper) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		if d.FirstSeen(l) {
			out = append(out, l)
		}
	}
	return out
}
