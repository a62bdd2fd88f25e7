// Package ingest implements the concurrent document lifecycle manager of
// the index: shard placement and row allocation for new documents, deletes
// with epoch-deferred storage reclamation, facts, and bulk group expiry.
// Readers never block; the token/recycler pair in internal/epoch keeps
// concurrent reclamation safe.
package ingest

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/praveenmunagapati/BitFunnel/internal/document"
	"github.com/praveenmunagapati/BitFunnel/internal/epoch"
	"github.com/praveenmunagapati/BitFunnel/pkg/config"
	apperrors "github.com/praveenmunagapati/BitFunnel/pkg/errors"
	"github.com/praveenmunagapati/BitFunnel/pkg/logger"
)

// Ingestor is the top-level controller for document ingestion. All exported
// operations are safe for concurrent use.
type Ingestor struct {
	cfg       config.IndexConfig
	shards    []*Shard
	docs      *documentMap
	cache     *DocumentCache
	epochs    *epoch.Manager
	recycler  *epoch.Recycler
	facts     *FactSet
	terms     TermTable
	alloc     BlockAllocator
	histogram *DocumentHistogram
	logger    *slog.Logger

	docCount     atomic.Int64
	sourceBytes  atomic.Int64
	postingCount atomic.Int64

	// deleteMu serializes deletes against each other only; readers and
	// adds never take it.
	deleteMu sync.Mutex

	groupMu sync.Mutex
	groups  map[GroupID]*group
	current *group
	expired map[GroupID]struct{}

	closed atomic.Bool
}

// Option customizes an Ingestor at construction.
type Option func(*Ingestor)

// WithTermTable supplies an external term-to-row mapping table.
func WithTermTable(tt TermTable) Option {
	return func(ing *Ingestor) { ing.terms = tt }
}

// WithBlockAllocator supplies an external slice-buffer allocator.
func WithBlockAllocator(a BlockAllocator) Option {
	return func(ing *Ingestor) { ing.alloc = a }
}

// New builds an Ingestor from the index geometry and starts its recycler.
func New(cfg config.IndexConfig, opts ...Option) (*Ingestor, error) {
	if cfg.ShardCount <= 0 || cfg.ShardCapacity == 0 || cfg.TermRowCount == 0 || cfg.RowsPerTerm <= 0 {
		return nil, apperrors.New(apperrors.ErrInvalidArgument, "ingest.New", "invalid index geometry")
	}

	ing := &Ingestor{
		cfg:       cfg,
		docs:      newDocumentMap(),
		cache:     NewDocumentCache(cfg.DocumentCacheSize),
		epochs:    epoch.NewManager(),
		facts:     newFactSet(cfg.FactRowCount),
		histogram: NewDocumentHistogram(),
		groups:    make(map[GroupID]*group),
		expired:   make(map[GroupID]struct{}),
		logger:    logger.WithComponent("ingestor"),
	}
	for _, opt := range opts {
		opt(ing)
	}
	if ing.terms == nil {
		ing.terms = NewHashedTermTable(cfg.TermRowCount, cfg.RowsPerTerm)
	}
	if ing.alloc == nil {
		ing.alloc = NewSliceBufferAllocator(int(cfg.ShardCapacity) * 8)
	}

	for i := 0; i < cfg.ShardCount; i++ {
		s, err := newShard(i, cfg, ing.alloc, ing.terms)
		if err != nil {
			for _, built := range ing.shards {
				built.close()
			}
			return nil, err
		}
		ing.shards = append(ing.shards, s)
	}

	ing.recycler = epoch.NewRecycler(ing.epochs, cfg.RecycleInterval)
	ing.recycler.Start()

	ing.logger.Info("ingestor ready",
		"shards", cfg.ShardCount,
		"shard_capacity", cfg.ShardCapacity,
		"term_rows", cfg.TermRowCount,
		"fact_rows", cfg.FactRowCount,
	)
	return ing, nil
}

// Add places the document in a shard, writes its postings into row storage,
// and publishes the id-to-location mapping. The mapping becomes visible
// only after the storage is fully written, so readers never observe a
// partially populated document. It fails with ErrDuplicateDocument when the
// id is live and ErrCapacityExhausted when no shard has a free slot.
func (ing *Ingestor) Add(id DocID, doc *document.Document) error {
	if ing.closed.Load() {
		return apperrors.New(apperrors.ErrShutdown, "ingest.Add", "")
	}
	if _, exists := ing.docs.get(id); exists {
		return apperrors.Newf(apperrors.ErrDuplicateDocument, "ingest.Add", "doc %d", id)
	}

	shard, slot, err := ing.placeDocument()
	if err != nil {
		return err
	}
	postings := shard.writeDocument(slot, uint64(id), doc)

	h := DocumentHandle{shard: shard, slot: slot, id: id}
	if !ing.docs.insert(id, h) {
		// Lost a race with a concurrent Add of the same id. The slot was
		// never published, so no reader can hold it; reclaim immediately.
		shard.releaseSlot(slot)
		return apperrors.Newf(apperrors.ErrDuplicateDocument, "ingest.Add", "doc %d", id)
	}

	ing.docCount.Add(1)
	ing.sourceBytes.Add(doc.SourceByteCount())
	ing.postingCount.Add(int64(postings))
	ing.histogram.Record(postings)
	ing.cache.Put(id, doc)

	ing.groupMu.Lock()
	if ing.current != nil {
		ing.current.tag(id)
	}
	ing.groupMu.Unlock()

	ing.logger.Debug("document added",
		"doc_id", uint64(id),
		"shard_id", shard.id,
		"slot", slot,
		"postings", postings,
	)
	return nil
}

// placeDocument routes to the least-loaded shard that still has a free
// slot.
func (ing *Ingestor) placeDocument() (*Shard, uint32, error) {
	order := make([]int, len(ing.shards))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return ing.shards[order[a]].DocCount() < ing.shards[order[b]].DocCount()
	})
	for _, i := range order {
		slot, err := ing.shards[i].allocateSlot()
		if err == nil {
			return ing.shards[i], slot, nil
		}
	}
	return nil, 0, apperrors.New(apperrors.ErrCapacityExhausted, "ingest.Add", "all shards at capacity")
}

// Delete removes the document from serving. It returns true when the
// document was live and is now removed, and false for ids never added or
// already deleted; the soft false keeps bulk-delete callers from having to
// track prior state. The slot's storage is reclaimed by the recycler once
// no outstanding reader token predates the delete.
func (ing *Ingestor) Delete(id DocID) bool {
	ing.deleteMu.Lock()
	defer ing.deleteMu.Unlock()

	h, ok := ing.docs.remove(id)
	if !ok {
		return false
	}
	ing.docCount.Add(-1)
	ing.recycler.Retire(epoch.RecycleFunc(func() {
		h.shard.releaseSlot(h.slot)
	}))
	ing.logger.Debug("document deleted", "doc_id", uint64(id), "shard_id", h.shard.id, "slot", h.slot)
	return true
}

// RegisterFact adds a fact to the registry AssertFact validates against.
func (ing *Ingestor) RegisterFact(name string) (FactHandle, error) {
	return ing.facts.Register(name)
}

// AssertFact sets or clears the fact bit for the document. It fails with
// ErrUnknownFact if the fact was not registered and ErrInvalidArgument if
// the document is not live.
func (ing *Ingestor) AssertFact(id DocID, fact FactHandle, value bool) error {
	if !ing.facts.Contains(fact) {
		return apperrors.Newf(apperrors.ErrUnknownFact, "ingest.AssertFact", "fact %d", fact)
	}
	h, ok := ing.docs.get(id)
	if !ok {
		return apperrors.Newf(apperrors.ErrInvalidArgument, "ingest.AssertFact", "doc %d not live", id)
	}
	h.shard.setFact(h.slot, fact, value)
	return nil
}

// Contains reports whether id is currently visible to the query system:
// added, not deleted, and its group (if any) not expired.
func (ing *Ingestor) Contains(id DocID) bool {
	_, ok := ing.docs.get(id)
	return ok
}

// GetHandle returns the location handle for a live document.
func (ing *Ingestor) GetHandle(id DocID) (DocumentHandle, bool) {
	return ing.docs.get(id)
}

// GetDocumentCount returns the number of currently visible documents.
func (ing *Ingestor) GetDocumentCount() int64 {
	return ing.docCount.Load()
}

// GetUsedCapacityInBytes returns the byte size of row storage across all
// shards.
func (ing *Ingestor) GetUsedCapacityInBytes() uint64 {
	var total uint64
	for _, s := range ing.shards {
		total += s.UsedCapacityInBytes()
	}
	return total
}

// GetTotalSourceBytesIngested returns the cumulative source bytes of all
// documents ingested. It is not reduced by deletes.
func (ing *Ingestor) GetTotalSourceBytesIngested() int64 {
	return ing.sourceBytes.Load()
}

// GetPostingCount returns the total postings across all ingested
// documents. It is not reduced by deletes.
func (ing *Ingestor) GetPostingCount() int64 {
	return ing.postingCount.Load()
}

// GetShardCount returns the number of shards.
func (ing *Ingestor) GetShardCount() int {
	return len(ing.shards)
}

// GetShard returns the shard with the given id.
func (ing *Ingestor) GetShard(i int) *Shard {
	return ing.shards[i]
}

// TokenManager returns the epoch manager readers register with.
func (ing *Ingestor) TokenManager() *epoch.Manager {
	return ing.epochs
}

// Recycler returns the deferred-reclamation recycler.
func (ing *Ingestor) Recycler() *epoch.Recycler {
	return ing.recycler
}

// Facts returns the fact registry.
func (ing *Ingestor) Facts() *FactSet {
	return ing.facts
}

// DocumentCache returns the diagnostics cache of ingested documents.
func (ing *Ingestor) DocumentCache() *DocumentCache {
	return ing.cache
}

// OpenGroup closes any currently open group and starts a new one; all
// subsequent adds are tagged with it. Group ids are single-use: reopening
// a closed or expired group fails with ErrGroupReopened.
func (ing *Ingestor) OpenGroup(id GroupID) error {
	if ing.closed.Load() {
		return apperrors.New(apperrors.ErrShutdown, "ingest.OpenGroup", "")
	}
	ing.groupMu.Lock()
	defer ing.groupMu.Unlock()
	if _, seen := ing.groups[id]; seen {
		return apperrors.Newf(apperrors.ErrGroupReopened, "ingest.OpenGroup", "group %d", id)
	}
	if _, seen := ing.expired[id]; seen {
		return apperrors.Newf(apperrors.ErrGroupReopened, "ingest.OpenGroup", "group %d was expired", id)
	}
	if ing.current != nil {
		ing.current.closed = true
	}
	g := newGroup(id)
	ing.groups[id] = g
	ing.current = g
	ing.logger.Info("group opened", "group_id", uint64(id))
	return nil
}

// CloseGroup makes the current group immutable; subsequent adds are
// untagged until the next OpenGroup.
func (ing *Ingestor) CloseGroup() {
	ing.groupMu.Lock()
	defer ing.groupMu.Unlock()
	if ing.current != nil {
		ing.current.closed = true
		ing.current = nil
	}
}

// ExpireGroup deletes every document tagged with the group. Documents
// already deleted for other reasons are skipped per the Delete contract.
// The group id can never be reopened. It returns the number of documents
// actually removed.
func (ing *Ingestor) ExpireGroup(id GroupID) (int, error) {
	ing.groupMu.Lock()
	g, ok := ing.groups[id]
	if !ok {
		ing.groupMu.Unlock()
		return 0, apperrors.Newf(apperrors.ErrUnknownGroup, "ingest.ExpireGroup", "group %d", id)
	}
	if ing.current == g {
		ing.current = nil
	}
	g.closed = true
	delete(ing.groups, id)
	ing.expired[id] = struct{}{}
	members := g.members()
	ing.groupMu.Unlock()

	deleted := 0
	for _, docID := range members {
		if ing.Delete(docID) {
			deleted++
		}
	}
	ing.logger.Info("group expired", "group_id", uint64(id), "documents", deleted)
	return deleted, nil
}

// Shutdown stops the recycler, reclaims everything pending, and releases
// shard and cache storage. Mutating operations after Shutdown fail with
// ErrShutdown where detectable; callers own their lifecycle discipline.
func (ing *Ingestor) Shutdown() {
	if !ing.closed.CompareAndSwap(false, true) {
		return
	}
	ing.recycler.Stop()
	ing.recycler.DrainAll()
	for _, s := range ing.shards {
		s.close()
	}
	ing.cache.Clear()
	ing.logger.Info("ingestor shut down")
}
