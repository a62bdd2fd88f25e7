package ingest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praveenmunagapati/BitFunnel/internal/document"
	"github.com/praveenmunagapati/BitFunnel/internal/term"
	"github.com/praveenmunagapati/BitFunnel/pkg/config"
	apperrors "github.com/praveenmunagapati/BitFunnel/pkg/errors"
)

func testConfig() config.IndexConfig {
	return config.IndexConfig{
		ShardCount:        2,
		ShardCapacity:     4,
		TermRowCount:      256,
		RowsPerTerm:       2,
		FactRowCount:      4,
		MaxGramSize:       2,
		DocumentCacheSize: 8,
		RecycleInterval:   time.Millisecond,
	}
}

func newTestIngestor(t *testing.T, cfg config.IndexConfig) *Ingestor {
	t.Helper()
	ing, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(ing.Shutdown)
	return ing
}

func makeDoc(t *testing.T, words ...string) *document.Document {
	t.Helper()
	d := document.New(2, nil)
	d.OpenStream(0)
	for _, w := range words {
		d.AddTerm(w)
	}
	d.CloseStream()
	return d
}

func TestAddThenContains(t *testing.T) {
	ing := newTestIngestor(t, testConfig())

	require.NoError(t, ing.Add(1, makeDoc(t, "hello", "world")))
	require.True(t, ing.Contains(1))
	require.False(t, ing.Contains(2))

	h, ok := ing.GetHandle(1)
	require.True(t, ok)
	require.Equal(t, DocID(1), h.DocID())
	// "hello", "world", "hello world" deduplicate to three postings.
	require.Equal(t, uint64(3), h.PostingCount())
	require.True(t, h.HasPosting(term.New("hello", 0, nil)))
	require.True(t, h.HasPosting(term.New("world", 0, nil)))

	require.Equal(t, int64(1), ing.GetDocumentCount())
	require.Equal(t, int64(3), ing.GetPostingCount())
	require.Equal(t, int64(len("hello")+len("world")), ing.GetTotalSourceBytesIngested())
	require.NotZero(t, ing.GetUsedCapacityInBytes())
}

func TestAddDuplicateFails(t *testing.T) {
	ing := newTestIngestor(t, testConfig())

	require.NoError(t, ing.Add(7, makeDoc(t, "alpha")))
	err := ing.Add(7, makeDoc(t, "beta"))
	require.ErrorIs(t, err, apperrors.ErrDuplicateDocument)
	require.Equal(t, apperrors.KindCallerInput, apperrors.KindOf(err))
	require.Equal(t, int64(1), ing.GetDocumentCount())
}

func TestAddCapacityExhausted(t *testing.T) {
	cfg := testConfig()
	cfg.ShardCount = 1
	cfg.ShardCapacity = 2
	ing := newTestIngestor(t, cfg)

	require.NoError(t, ing.Add(1, makeDoc(t, "a")))
	require.NoError(t, ing.Add(2, makeDoc(t, "b")))

	err := ing.Add(3, makeDoc(t, "c"))
	require.ErrorIs(t, err, apperrors.ErrCapacityExhausted)
	require.Equal(t, apperrors.KindCapacity, apperrors.KindOf(err))
}

func TestDeleteIsIdempotent(t *testing.T) {
	ing := newTestIngestor(t, testConfig())

	require.NoError(t, ing.Add(1, makeDoc(t, "x")))
	require.True(t, ing.Delete(1))
	require.False(t, ing.Contains(1))
	_, ok := ing.GetHandle(1)
	require.False(t, ok)

	require.False(t, ing.Delete(1), "second delete of the same id")
	require.False(t, ing.Delete(99), "delete of an id never added")
	require.Equal(t, int64(0), ing.GetDocumentCount())
}

func TestDeletedIdCanBeReadded(t *testing.T) {
	ing := newTestIngestor(t, testConfig())

	require.NoError(t, ing.Add(1, makeDoc(t, "first")))
	require.True(t, ing.Delete(1))
	require.NoError(t, ing.Add(1, makeDoc(t, "second")))
	require.True(t, ing.Contains(1))
}

func TestCountersSurviveDelete(t *testing.T) {
	ing := newTestIngestor(t, testConfig())

	require.NoError(t, ing.Add(1, makeDoc(t, "one", "two")))
	postings := ing.GetPostingCount()
	bytes := ing.GetTotalSourceBytesIngested()
	require.True(t, ing.Delete(1))

	// Posting and source-byte counters are cumulative.
	require.Equal(t, postings, ing.GetPostingCount())
	require.Equal(t, bytes, ing.GetTotalSourceBytesIngested())
	require.Equal(t, int64(0), ing.GetDocumentCount())
}

func TestAssertFact(t *testing.T) {
	ing := newTestIngestor(t, testConfig())
	require.NoError(t, ing.Add(1, makeDoc(t, "doc")))

	approved, err := ing.RegisterFact("approved")
	require.NoError(t, err)

	err = ing.AssertFact(1, FactHandle(99), true)
	require.ErrorIs(t, err, apperrors.ErrUnknownFact)

	require.NoError(t, ing.AssertFact(1, approved, true))
	h, _ := ing.GetHandle(1)
	require.True(t, h.HasFact(approved))

	require.NoError(t, ing.AssertFact(1, approved, false))
	require.False(t, h.HasFact(approved))

	err = ing.AssertFact(42, approved, true)
	require.ErrorIs(t, err, apperrors.ErrInvalidArgument)
}

func TestFactsAreIndependent(t *testing.T) {
	ing := newTestIngestor(t, testConfig())
	require.NoError(t, ing.Add(1, makeDoc(t, "doc")))

	a, err := ing.RegisterFact("a")
	require.NoError(t, err)
	b, err := ing.RegisterFact("b")
	require.NoError(t, err)

	require.NoError(t, ing.AssertFact(1, a, true))
	h, _ := ing.GetHandle(1)
	require.True(t, h.HasFact(a))
	require.False(t, h.HasFact(b))
}

func TestGroupExpiry(t *testing.T) {
	cfg := testConfig()
	cfg.ShardCapacity = 8
	ing := newTestIngestor(t, cfg)

	require.NoError(t, ing.Add(1, makeDoc(t, "before")))

	require.NoError(t, ing.OpenGroup(10))
	require.NoError(t, ing.Add(2, makeDoc(t, "in")))
	require.NoError(t, ing.Add(3, makeDoc(t, "group")))
	ing.CloseGroup()

	require.NoError(t, ing.OpenGroup(11))
	require.NoError(t, ing.Add(4, makeDoc(t, "after")))
	ing.CloseGroup()

	deleted, err := ing.ExpireGroup(10)
	require.NoError(t, err)
	require.Equal(t, 2, deleted)

	require.True(t, ing.Contains(1), "document added before the group")
	require.False(t, ing.Contains(2))
	require.False(t, ing.Contains(3))
	require.True(t, ing.Contains(4), "document in a different group")
}

func TestExpireGroupSkipsAlreadyDeleted(t *testing.T) {
	ing := newTestIngestor(t, testConfig())

	require.NoError(t, ing.OpenGroup(1))
	require.NoError(t, ing.Add(1, makeDoc(t, "a")))
	require.NoError(t, ing.Add(2, makeDoc(t, "b")))
	ing.CloseGroup()

	require.True(t, ing.Delete(1))
	deleted, err := ing.ExpireGroup(1)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	require.False(t, ing.Contains(2))
}

func TestGroupLifecycleErrors(t *testing.T) {
	ing := newTestIngestor(t, testConfig())

	_, err := ing.ExpireGroup(5)
	require.ErrorIs(t, err, apperrors.ErrUnknownGroup)

	require.NoError(t, ing.OpenGroup(5))
	// Opening a new group closes the previous one implicitly.
	require.NoError(t, ing.OpenGroup(6))
	require.ErrorIs(t, ing.OpenGroup(5), apperrors.ErrGroupReopened)

	_, err = ing.ExpireGroup(5)
	require.NoError(t, err)
	require.ErrorIs(t, ing.OpenGroup(5), apperrors.ErrGroupReopened)
	_, err = ing.ExpireGroup(5)
	require.ErrorIs(t, err, apperrors.ErrUnknownGroup)
}

func TestExpireCurrentGroupClosesIt(t *testing.T) {
	ing := newTestIngestor(t, testConfig())

	require.NoError(t, ing.OpenGroup(1))
	require.NoError(t, ing.Add(1, makeDoc(t, "a")))

	deleted, err := ing.ExpireGroup(1)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	// No group is open anymore; the next add is untagged.
	require.NoError(t, ing.Add(2, makeDoc(t, "b")))
	require.True(t, ing.Contains(2))
}

func TestShutdownRejectsMutations(t *testing.T) {
	cfg := testConfig()
	ing, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, ing.Add(1, makeDoc(t, "a")))
	ing.Shutdown()

	require.ErrorIs(t, ing.Add(2, makeDoc(t, "b")), apperrors.ErrShutdown)
	require.ErrorIs(t, ing.OpenGroup(1), apperrors.ErrShutdown)
	// Shutdown twice is a no-op.
	ing.Shutdown()
}

// TestReaderTokenBlocksSlotReuse pins the reclamation contract: a reader
// that captured its token before a delete began keeps the slot out of the
// free list until the token is released.
func TestReaderTokenBlocksSlotReuse(t *testing.T) {
	cfg := testConfig()
	cfg.ShardCount = 1
	cfg.ShardCapacity = 1
	ing := newTestIngestor(t, cfg)

	require.NoError(t, ing.Add(1, makeDoc(t, "pinned")))

	tok := ing.TokenManager().Request()
	require.True(t, ing.Delete(1))

	for i := 0; i < 5; i++ {
		ing.Recycler().Sweep()
	}
	err := ing.Add(2, makeDoc(t, "blocked"))
	require.ErrorIs(t, err, apperrors.ErrCapacityExhausted,
		"slot reused while a reader token predating the delete is outstanding")

	tok.Release()
	ing.Recycler().Sweep()
	require.NoError(t, ing.Add(2, makeDoc(t, "unblocked")))
}

// TestConcurrentAddDeleteWithReaders drives adds, deletes, and token-holding
// readers in parallel; correctness is the absence of panics and of
// inconsistent Contains/GetHandle views under the race detector.
func TestConcurrentAddDeleteWithReaders(t *testing.T) {
	cfg := testConfig()
	cfg.ShardCount = 4
	cfg.ShardCapacity = 64
	ing := newTestIngestor(t, cfg)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := DocID(base*1000 + i)
				if err := ing.Add(id, makeDoc(t, fmt.Sprintf("w%d", base), fmt.Sprintf("t%d", i))); err != nil {
					continue
				}
				if i%3 == 0 {
					ing.Delete(id)
				}
			}
		}(w)
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				tok := ing.TokenManager().Request()
				for id := DocID(0); id < 50; id++ {
					if h, ok := ing.GetHandle(id); ok {
						_ = h.PostingCount()
					}
				}
				tok.Release()
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()

	require.GreaterOrEqual(t, ing.GetDocumentCount(), int64(0))
}

func TestDocumentCacheHoldsRecentDocs(t *testing.T) {
	ing := newTestIngestor(t, testConfig())

	doc := makeDoc(t, "cached")
	require.NoError(t, ing.Add(1, doc))

	got, ok := ing.DocumentCache().Get(1)
	require.True(t, ok)
	require.Equal(t, doc.PostingCount(), got.PostingCount())
}

func TestShardPlacementBalances(t *testing.T) {
	cfg := testConfig()
	cfg.ShardCount = 2
	cfg.ShardCapacity = 4
	ing := newTestIngestor(t, cfg)

	for i := DocID(1); i <= 4; i++ {
		require.NoError(t, ing.Add(i, makeDoc(t, fmt.Sprintf("doc%d", i))))
	}
	require.Equal(t, int64(2), ing.GetShard(0).DocCount())
	require.Equal(t, int64(2), ing.GetShard(1).DocCount())
}
