package ingest

import (
	"github.com/praveenmunagapati/BitFunnel/internal/term"
)

// DocID is the external identifier of a document. An id is unique while
// the document is live and may be reused only after explicit deletion.
type DocID uint64

// GroupID names a time-windowed batch of documents expirable as a unit.
type GroupID uint64

// FactHandle identifies a registered fact; it doubles as the fact's row
// index within the shard's fact row region.
type FactHandle uint32

// DocumentHandle locates a live document's storage: the shard it was
// placed in and the slot it occupies. Placement is immutable for the
// document's lifetime.
type DocumentHandle struct {
	shard *Shard
	slot  uint32
	id    DocID
}

// DocID returns the document's external id.
func (h DocumentHandle) DocID() DocID {
	return h.id
}

// Shard returns the shard the document was placed in.
func (h DocumentHandle) Shard() *Shard {
	return h.shard
}

// Slot returns the document's slot within its shard.
func (h DocumentHandle) Slot() uint32 {
	return h.slot
}

// PostingCount returns the number of postings written for the document.
func (h DocumentHandle) PostingCount() uint64 {
	return h.shard.postings.Get(uint64(h.slot))
}

// HasPosting probes the document's row bits for the term, the same check
// the query path performs. Row sharing can produce false positives; false
// negatives cannot occur.
func (h DocumentHandle) HasPosting(t term.Term) bool {
	return h.shard.hasPosting(h.slot, t)
}

// HasFact reports whether the fact bit is currently set for the document.
func (h DocumentHandle) HasFact(fact FactHandle) bool {
	return h.shard.hasFact(h.slot, fact)
}
