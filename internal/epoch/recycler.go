package epoch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/praveenmunagapati/BitFunnel/pkg/logger"
)

// Recyclable is a resource whose storage can be reclaimed once no reader
// token could still observe it.
type Recyclable interface {
	Recycle()
}

// RecycleFunc adapts a closure to the Recyclable interface.
type RecycleFunc func()

// Recycle invokes the closure.
func (f RecycleFunc) Recycle() { f() }

type retired struct {
	epoch    uint64
	resource Recyclable
}

// Recycler defers reclamation of retired resources until the epoch floor
// has passed their retirement epoch. A background goroutine periodically
// advances the epoch and sweeps the pending list.
type Recycler struct {
	epochs   *Manager
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	pending []retired

	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewRecycler creates a Recycler sweeping at the given interval.
func NewRecycler(epochs *Manager, interval time.Duration) *Recycler {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Recycler{
		epochs:   epochs,
		interval: interval,
		logger:   logger.WithComponent("recycler"),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Retire stamps the resource with the current epoch and queues it for
// reclamation once all older reader tokens are released.
func (r *Recycler) Retire(resource Recyclable) {
	e := r.epochs.Current()
	r.mu.Lock()
	r.pending = append(r.pending, retired{epoch: e, resource: resource})
	r.mu.Unlock()
}

// Start launches the background sweep loop.
func (r *Recycler) Start() {
	r.started = true
	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				r.Sweep()
			}
		}
	}()
}

// Sweep advances the global epoch and reclaims every pending resource whose
// retirement epoch is below the new floor. It returns the number reclaimed.
func (r *Recycler) Sweep() int {
	r.epochs.Advance()
	floor := r.epochs.Floor()

	r.mu.Lock()
	var ready []retired
	remaining := r.pending[:0]
	for _, p := range r.pending {
		if p.epoch < floor {
			ready = append(ready, p)
		} else {
			remaining = append(remaining, p)
		}
	}
	r.pending = remaining
	r.mu.Unlock()

	for _, p := range ready {
		p.resource.Recycle()
	}
	if len(ready) > 0 {
		r.logger.Debug("reclaimed resources", "count", len(ready), "floor", floor)
	}
	return len(ready)
}

// PendingCount returns the number of resources awaiting reclamation.
func (r *Recycler) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop halts the sweep loop and waits for it to exit.
func (r *Recycler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	if r.started {
		<-r.done
	}
}

// DrainAll reclaims everything still pending, regardless of epoch. Only
// legal during shutdown, after all readers have stopped.
func (r *Recycler) DrainAll() {
	r.mu.Lock()
	pending := r.pending
	r.pending = nil
	r.mu.Unlock()
	for _, p := range pending {
		p.resource.Recycle()
	}
}
