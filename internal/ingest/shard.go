package ingest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/praveenmunagapati/BitFunnel/internal/document"
	"github.com/praveenmunagapati/BitFunnel/internal/packed"
	"github.com/praveenmunagapati/BitFunnel/internal/term"
	"github.com/praveenmunagapati/BitFunnel/pkg/config"
	apperrors "github.com/praveenmunagapati/BitFunnel/pkg/errors"
)

// Shard is one partition of the index. It owns a bounded number of document
// slots and the bit-sliced row storage for them: a packed 1-bit matrix of
// (termRows + factRows) rows by capacity slot columns, plus a 32-bit packed
// posting-count table and a doc-id table backed by an allocator block.
//
// Row writes are serialized by writeMu; reads go straight to the packed
// matrix and are protected from reclamation by the epoch mechanism, not by
// locks.
type Shard struct {
	id       int
	capacity uint32
	termRows uint32
	factRows uint32

	rows     *packed.Array
	postings *packed.Array
	docIDs   []uint64
	docBlock []byte
	alloc    BlockAllocator
	terms    TermTable

	writeMu sync.Mutex

	slotMu    sync.Mutex
	freeSlots []uint32

	used      atomic.Int64
	termCount atomic.Uint64
	df        *term.FrequencyTable
}

// newShard builds a shard from the index geometry. The allocator block must
// hold at least capacity doc-id entries.
func newShard(id int, cfg config.IndexConfig, alloc BlockAllocator, terms TermTable) (*Shard, error) {
	totalRows := uint64(cfg.TermRowCount) + uint64(cfg.FactRowCount)
	rows, err := packed.New(totalRows*uint64(cfg.ShardCapacity), 1, cfg.UseLargePages)
	if err != nil {
		return nil, fmt.Errorf("shard %d: row table: %w", id, err)
	}
	postings, err := packed.New(uint64(cfg.ShardCapacity), 32, false)
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("shard %d: posting counts: %w", id, err)
	}
	block, err := alloc.Allocate()
	if err != nil {
		rows.Close()
		postings.Close()
		return nil, fmt.Errorf("shard %d: doc table block: %w", id, err)
	}
	if len(block) < int(cfg.ShardCapacity)*8 {
		alloc.Release(block)
		rows.Close()
		postings.Close()
		return nil, apperrors.Newf(apperrors.ErrInvalidArgument, "ingest.newShard",
			"allocator block of %d bytes cannot hold %d doc ids", len(block), cfg.ShardCapacity)
	}

	s := &Shard{
		id:        id,
		capacity:  cfg.ShardCapacity,
		termRows:  cfg.TermRowCount,
		factRows:  cfg.FactRowCount,
		rows:      rows,
		postings:  postings,
		docIDs:    unsafe.Slice((*uint64)(unsafe.Pointer(&block[0])), cfg.ShardCapacity),
		docBlock:  block,
		alloc:     alloc,
		terms:     terms,
		freeSlots: make([]uint32, 0, cfg.ShardCapacity),
		df:        term.NewFrequencyTable(),
	}
	for slot := cfg.ShardCapacity; slot > 0; slot-- {
		s.freeSlots = append(s.freeSlots, slot-1)
	}
	return s, nil
}

// ID returns the shard's index within the ingestor.
func (s *Shard) ID() int {
	return s.id
}

// Capacity returns the number of document slots.
func (s *Shard) Capacity() uint32 {
	return s.capacity
}

// DocCount returns the number of occupied slots.
func (s *Shard) DocCount() int64 {
	return s.used.Load()
}

// TermCount returns the cumulative number of postings written to this
// shard. It is not reduced by deletes.
func (s *Shard) TermCount() uint64 {
	return s.termCount.Load()
}

// FrequencyTable returns the shard's document-frequency table.
func (s *Shard) FrequencyTable() *term.FrequencyTable {
	return s.df
}

// UsedCapacityInBytes returns the byte size of this shard's row storage.
func (s *Shard) UsedCapacityInBytes() uint64 {
	return s.rows.SizeInBytes() + s.postings.SizeInBytes() + uint64(len(s.docBlock))
}

// allocateSlot removes a slot from the free list.
func (s *Shard) allocateSlot() (uint32, error) {
	s.slotMu.Lock()
	defer s.slotMu.Unlock()
	if len(s.freeSlots) == 0 {
		return 0, apperrors.Newf(apperrors.ErrShardFull, "ingest.allocateSlot", "shard %d", s.id)
	}
	slot := s.freeSlots[len(s.freeSlots)-1]
	s.freeSlots = s.freeSlots[:len(s.freeSlots)-1]
	s.used.Add(1)
	return slot, nil
}

// releaseSlot clears the slot's column across every row and returns it to
// the free list. Callers must guarantee no reader can still observe the
// slot; the recycler provides that guarantee on the delete path.
func (s *Shard) releaseSlot(slot uint32) {
	s.writeMu.Lock()
	totalRows := uint64(s.termRows) + uint64(s.factRows)
	for row := uint64(0); row < totalRows; row++ {
		s.rows.Set(row*uint64(s.capacity)+uint64(slot), 0)
	}
	s.postings.Set(uint64(slot), 0)
	s.docIDs[slot] = 0
	s.writeMu.Unlock()

	s.slotMu.Lock()
	s.freeSlots = append(s.freeSlots, slot)
	s.used.Add(-1)
	s.slotMu.Unlock()
}

// postingWriter adapts a slot's row storage to document.PostingSink.
type postingWriter struct {
	shard *Shard
	slot  uint32
	count int
}

func (w *postingWriter) AddPosting(t term.Term) {
	for _, row := range w.shard.terms.RowsFor(t) {
		w.shard.rows.Set(uint64(row)*uint64(w.shard.capacity)+uint64(w.slot), 1)
	}
	w.count++
}

// writeDocument commits the document's posting set into the slot and
// returns the number of postings written. The slot is not visible to
// readers until the caller publishes the id-to-location mapping.
func (s *Shard) writeDocument(slot uint32, id uint64, doc *document.Document) int {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	w := &postingWriter{shard: s, slot: slot}
	doc.Ingest(w)
	s.postings.Set(uint64(slot), uint64(w.count))
	s.docIDs[slot] = id
	s.termCount.Add(uint64(w.count))
	s.df.RecordDocument(doc.Keys())
	return w.count
}

// setFact sets or clears the fact row bit for the slot.
func (s *Shard) setFact(slot uint32, fact FactHandle, value bool) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	row := uint64(s.termRows) + uint64(fact)
	v := uint64(0)
	if value {
		v = 1
	}
	s.rows.Set(row*uint64(s.capacity)+uint64(slot), v)
}

// hasPosting reports whether every row assigned to the term has its bit set
// for the slot. Row sharing can produce false positives, never false
// negatives.
func (s *Shard) hasPosting(slot uint32, t term.Term) bool {
	for _, row := range s.terms.RowsFor(t) {
		if s.rows.Get(uint64(row)*uint64(s.capacity)+uint64(slot)) == 0 {
			return false
		}
	}
	return true
}

// hasFact reports whether the fact row bit is set for the slot.
func (s *Shard) hasFact(slot uint32, fact FactHandle) bool {
	row := uint64(s.termRows) + uint64(fact)
	return s.rows.Get(row*uint64(s.capacity)+uint64(slot)) != 0
}

// close releases the shard's storage.
func (s *Shard) close() {
	s.rows.Close()
	s.postings.Close()
	s.docIDs = nil
	if s.docBlock != nil {
		s.alloc.Release(s.docBlock)
		s.docBlock = nil
	}
}
