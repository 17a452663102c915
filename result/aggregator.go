package result

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnclassified is returned when a record without a verdict is appended.
var ErrUnclassified = errors.New("record has no liveness verdict")

// Aggregator accepts classified records from concurrent workers.
type Aggregator interface {
	Append(rec LinkRecord) error
}

// Collector is the mutex-guarded Aggregator used by a run. Each Append is
// atomic: a record lands in the canonical partition (if resolved) and in
// exactly one of alive or dead, and no concurrent Append is lost.
type Collector struct {
	mu        sync.Mutex
	records   []LinkRecord
	canonical []string
	alive     []string
	dead      []string
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Append records rec in arrival order.
func (c *Collector) Append(rec LinkRecord) error {
	if rec.Outcome != OutcomeAlive && rec.Outcome != OutcomeDead {
		return fmt.Errorf("append %s: %w", rec.RawURL, ErrUnclassified)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = append(c.records, rec)
	if rec.CanonicalURL != "" {
		c.canonical = append(c.canonical, rec.CanonicalURL)
	}
	if rec.Outcome == OutcomeAlive {
		c.alive = append(c.alive, rec.URL())
	} else {
		c.dead = append(c.dead, rec.URL())
	}
	return nil
}

// Len returns the number of classified records.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// Partitions returns a copy of the three output sequences.
func (c *Collector) Partitions() Partitions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Partitions{
		Canonical: append([]string{}, c.canonical...),
		Alive:     append([]string{}, c.alive...),
		Dead:      append([]string{}, c.dead...),
	}
}

// Records returns a copy of every appended record.
func (c *Collector) Records() []LinkRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LinkRecord{}, c.records...)
}
