package epoch

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSweepReclaimsAfterAdvance(t *testing.T) {
	m := NewManager()
	r := NewRecycler(m, time.Millisecond)

	var freed atomic.Int32
	r.Retire(RecycleFunc(func() { freed.Add(1) }))
	require.Equal(t, 1, r.PendingCount())

	// No readers outstanding: one sweep advances past the retirement epoch.
	require.Equal(t, 1, r.Sweep())
	require.Equal(t, int32(1), freed.Load())
	require.Equal(t, 0, r.PendingCount())
}

func TestOutstandingTokenBlocksReclamation(t *testing.T) {
	m := NewManager()
	r := NewRecycler(m, time.Millisecond)

	tok := m.Request()

	var freed atomic.Int32
	r.Retire(RecycleFunc(func() { freed.Add(1) }))

	for i := 0; i < 5; i++ {
		r.Sweep()
	}
	require.Equal(t, int32(0), freed.Load(), "resource reclaimed while a reader token predating the retirement is held")

	tok.Release()
	require.Equal(t, 1, r.Sweep())
	require.Equal(t, int32(1), freed.Load())
}

func TestLaterTokenDoesNotBlockEarlierRetirement(t *testing.T) {
	m := NewManager()
	r := NewRecycler(m, time.Millisecond)

	var freed atomic.Int32
	r.Retire(RecycleFunc(func() { freed.Add(1) }))

	// Advance, then register a reader in the new epoch. The retirement
	// predates the token, so it is reclaimable.
	require.True(t, m.Advance())
	tok := m.Request()
	defer tok.Release()

	require.Equal(t, 1, r.Sweep())
	require.Equal(t, int32(1), freed.Load())
}

func TestTokenReleaseTwicePanics(t *testing.T) {
	m := NewManager()
	tok := m.Request()
	tok.Release()
	require.Panics(t, func() { tok.Release() })
}

func TestDrainAllIgnoresEpochs(t *testing.T) {
	m := NewManager()
	r := NewRecycler(m, time.Millisecond)

	var freed atomic.Int32
	r.Retire(RecycleFunc(func() { freed.Add(1) }))
	r.Retire(RecycleFunc(func() { freed.Add(1) }))

	r.DrainAll()
	require.Equal(t, int32(2), freed.Load())
	require.Equal(t, 0, r.PendingCount())
}

// TestConcurrentReadersAndRetirements hammers the manager with readers that
// snapshot a shared value under a token while a writer keeps replacing and
// retiring the old values. A reclaimed (zeroed) value observed under a
// token is a safety violation.
func TestConcurrentReadersAndRetirements(t *testing.T) {
	m := NewManager()
	r := NewRecycler(m, time.Millisecond)
	r.Start()
	defer r.Stop()

	type cell struct{ value int64 }
	live := atomic.Pointer[cell]{}
	live.Store(&cell{value: 1})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	var violations atomic.Int64
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				tok := m.Request()
				c := live.Load()
				if atomic.LoadInt64(&c.value) == 0 {
					violations.Add(1)
				}
				tok.Release()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(2); i < 500; i++ {
			old := live.Swap(&cell{value: i})
			r.Retire(RecycleFunc(func() {
				atomic.StoreInt64(&old.value, 0)
			}))
			time.Sleep(100 * time.Microsecond)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	close(stop)
	wg.Wait()
	require.Zero(t, violations.Load())
}
