// Package pool owns the fixed set of fetch/render handles used by a run.
// Handles are created once, partitioned into one slot per worker, and never
// shared across workers.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lukemcguire/vidcheck/probe"
)

// ErrInvalidSize is returned for a pool with no workers or no handles per worker.
var ErrInvalidSize = errors.New("pool needs at least one worker and one handle per worker")

// Handle is a reusable fetch/render session.
type Handle interface {
	probe.Fetcher
	probe.Renderer
	Close() error
}

// Factory creates the handle with the given pool-wide id.
type Factory func(ctx context.Context, id int) (Handle, error)

// SetupError reports a worker whose handles could not be created. The
// worker's links are left unprocessed; other workers are unaffected.
type SetupError struct {
	Worker int
	Err    error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("worker %d setup: %v", e.Worker, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Slot is the ordered set of handles exclusively owned by one worker.
type Slot struct {
	worker  int
	handles []Handle
}

// Worker returns the index of the owning worker.
func (s *Slot) Worker() int { return s.worker }

// Len returns the number of handles in the slot.
func (s *Slot) Len() int { return len(s.handles) }

// Handle returns the handle for the pos-th link of the worker's chunk,
// cycling through the slot round-robin.
func (s *Slot) Handle(pos int) Handle {
	return s.handles[pos%len(s.handles)]
}

// Pool holds workers*perWorker handles.
type Pool struct {
	slots  []*Slot
	errs   []error
	closed sync.Once
}

// New creates workers slots of perWorker handles each. Slots are set up
// concurrently. A factory failure only fails the affected worker; the
// returned error is non-nil only for an invalid size.
func New(ctx context.Context, workers, perWorker int, factory Factory) (*Pool, error) {
	if workers <= 0 || perWorker <= 0 {
		return nil, fmt.Errorf("%w: workers=%d handles=%d", ErrInvalidSize, workers, perWorker)
	}

	p := &Pool{
		slots: make([]*Slot, workers),
		errs:  make([]error, workers),
	}

	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			slot, err := newSlot(ctx, w, perWorker, factory)
			if err != nil {
				p.errs[w] = &SetupError{Worker: w, Err: err}
				return
			}
			p.slots[w] = slot
		}()
	}
	wg.Wait()

	return p, nil
}

func newSlot(ctx context.Context, worker, perWorker int, factory Factory) (slot *Slot, err error) {
	handles := make([]Handle, 0, perWorker)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handle factory panic: %v", r)
		}
		if err != nil {
			for _, h := range handles {
				_ = h.Close()
			}
		}
	}()

	for i := range perWorker {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h, err := factory(ctx, worker*perWorker+i)
		if err != nil {
			return nil, fmt.Errorf("create handle %d: %w", i, err)
		}
		handles = append(handles, h)
	}
	return &Slot{worker: worker, handles: handles}, nil
}

// Workers returns the number of slots.
func (p *Pool) Workers() int { return len(p.slots) }

// Slot returns the handles of worker, or its *SetupError.
func (p *Pool) Slot(worker int) (*Slot, error) {
	if worker < 0 || worker >= len(p.slots) {
		return nil, fmt.Errorf("worker %d out of range [0, %d)", worker, len(p.slots))
	}
	if p.errs[worker] != nil {
		return nil, p.errs[worker]
	}
	return p.slots[worker], nil
}

// SetupErrors returns the setup failures of all workers.
func (p *Pool) SetupErrors() []error {
	var errs []error
	for _, err := range p.errs {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Close closes every handle once.
func (p *Pool) Close() error {
	var errs []error
	p.closed.Do(func() {
		for _, s := range p.slots {
			if s == nil {
				continue
			}
			for _, h := range s.handles {
				if err := h.Close(); err != nil {
					errs = append(errs, fmt.Errorf("worker %d: close handle: %w", s.worker, err))
				}
			}
		}
	})
	return errors.Join(errs...)
}
