// Package epoch implements token-based safe memory reclamation. Readers
// request a token before traversing shared index memory and release it when
// done; writers retire freed resources through the Recycler, which reclaims
// them only once no outstanding token predates the retirement. Reads are
// lock-free; the only coordination is a ring of per-epoch atomic counters.
package epoch

import (
	"sync/atomic"
)

// ringSize bounds how many epochs may be in flight at once. Advance refuses
// to outrun the ring, so a counter slot is never reused while tokens from
// its previous occupancy could still exist.
const ringSize = 1024

// Manager issues reader tokens and tracks the global epoch.
type Manager struct {
	current atomic.Uint64
	floor   atomic.Uint64
	active  [ringSize]atomic.Int64
}

// NewManager creates a Manager at epoch 1.
func NewManager() *Manager {
	m := &Manager{}
	m.current.Store(1)
	m.floor.Store(1)
	return m
}

// Token represents one reader's registration in an epoch. It must be
// released exactly once.
type Token struct {
	m        *Manager
	epoch    uint64
	released bool
}

// Request registers a reader in the current epoch and returns its token.
func (m *Manager) Request() *Token {
	for {
		e := m.current.Load()
		m.active[e%ringSize].Add(1)
		if m.current.Load() == e {
			return &Token{m: m, epoch: e}
		}
		// The epoch advanced mid-registration; back out and retry so the
		// token never lands behind the reclamation floor.
		m.active[e%ringSize].Add(-1)
	}
}

// Epoch returns the epoch the token was issued in.
func (t *Token) Epoch() uint64 {
	return t.epoch
}

// Release deregisters the reader. Releasing twice is a caller defect.
func (t *Token) Release() {
	if t.released {
		panic("epoch: token released twice")
	}
	t.released = true
	t.m.active[t.epoch%ringSize].Add(-1)
}

// Current returns the current global epoch.
func (m *Manager) Current() uint64 {
	return m.current.Load()
}

// Advance bumps the global epoch so future tokens land in a fresh slot.
// It reports whether the epoch actually moved; it refuses to move when the
// span of in-flight epochs would wrap the counter ring.
func (m *Manager) Advance() bool {
	cur := m.current.Load()
	if cur-m.floor.Load() >= ringSize-2 {
		return false
	}
	return m.current.CompareAndSwap(cur, cur+1)
}

// Floor returns the oldest epoch that may still hold outstanding tokens.
// Every epoch below the floor is quiescent. Only the recycler goroutine
// calls Floor; the stored floor is a monotonic cache of the scan.
func (m *Manager) Floor() uint64 {
	f := m.floor.Load()
	cur := m.current.Load()
	for f < cur && m.active[f%ringSize].Load() == 0 {
		f++
	}
	m.floor.Store(f)
	return f
}
