// Package document converts a stream of raw term texts into a deduplicated
// set of n-gram postings. A Document is a per-source-document state machine:
// OpenStream begins a term stream, AddTerm drives the sliding n-gram window,
// and CloseStream drains the window so trailing partial n-grams are still
// emitted. Misusing the state machine (AddTerm without an open stream,
// opening a stream twice) is a caller defect and panics.
package document

import (
	"fmt"

	"github.com/praveenmunagapati/BitFunnel/internal/term"
)

// PostingSink consumes the deduplicated posting set of an ingested
// document. The row-allocation subsystem implements it.
type PostingSink interface {
	AddPosting(t term.Term)
}

// Document accumulates the posting set for one source document. It is
// mutated only by the single goroutine that owns the ingest of that
// document; after Ingest the posting set is read-only.
type Document struct {
	maxGramSize int
	dfTable     *term.FrequencyTable
	ring        *RingBuffer
	streamOpen  bool
	stream      term.StreamID
	postings    map[term.Key]term.Term
	order       []term.Key
	termCount   int
	sourceBytes int64
}

// New creates a Document from index-wide configuration. The frequency table
// supplies term weighting and may be nil.
func New(maxGramSize int, dfTable *term.FrequencyTable) *Document {
	if maxGramSize < 1 {
		panic(fmt.Sprintf("document: maxGramSize must be positive, got %d", maxGramSize))
	}
	return &Document{
		maxGramSize: maxGramSize,
		dfTable:     dfTable,
		ring:        NewRingBuffer(maxGramSize),
		postings:    make(map[term.Key]term.Term),
	}
}

// OpenStream starts a term stream. At most one stream may be open at a
// time; opening a second one panics.
func (d *Document) OpenStream(stream term.StreamID) {
	if d.streamOpen {
		panic("document: OpenStream while another stream is open")
	}
	d.streamOpen = true
	d.stream = stream
	d.ring.Reset()
}

// AddTerm appends one raw term text to the open stream, emitting every
// n-gram ending at this term once the trailing window is full. It panics
// when no stream is open.
func (d *Document) AddTerm(text string) {
	if !d.streamOpen {
		panic("document: AddTerm with no open stream")
	}
	d.termCount++
	d.sourceBytes += int64(len(text))

	*d.ring.PushBack() = term.New(text, d.stream, d.dfTable)
	if d.ring.Count() == d.maxGramSize {
		d.processNGrams()
		d.ring.PopFront()
	}
}

// CloseStream ends the open stream, draining the ring buffer so n-grams
// near the end of the document are emitted at every sub-length. It panics
// when no stream is open.
func (d *Document) CloseStream() {
	if !d.streamOpen {
		panic("document: CloseStream with no open stream")
	}
	d.streamOpen = false
	d.purgeRingBuffer()
}

// processNGrams emits the unigram at the oldest window position, then each
// longer composition extending toward the newest term, ending with the
// full-window n-gram.
func (d *Document) processNGrams() {
	count := d.ring.Count()
	if count == 0 {
		panic("document: processNGrams on empty window")
	}
	t := *d.ring.At(0)
	d.post(t)
	for n := 1; n < count; n++ {
		t.Extend(*d.ring.At(n))
		d.post(t)
	}
}

// purgeRingBuffer repeatedly emits n-grams for the shrinking window and
// pops the oldest element until the buffer is empty, mirroring the
// emissions that happen during normal filling.
func (d *Document) purgeRingBuffer() {
	for !d.ring.Empty() {
		d.processNGrams()
		d.ring.PopFront()
	}
}

// post inserts the n-gram into the posting set; re-insertion of an
// identical n-gram is a no-op.
func (d *Document) post(t term.Term) {
	k := t.Key()
	if _, seen := d.postings[k]; seen {
		return
	}
	d.postings[k] = t
	d.order = append(d.order, k)
}

// Ingest feeds the deduplicated posting set to the sink in emission order.
func (d *Document) Ingest(sink PostingSink) {
	for _, k := range d.order {
		sink.AddPosting(d.postings[k])
	}
}

// PostingCount returns the number of distinct postings.
func (d *Document) PostingCount() int {
	return len(d.postings)
}

// Keys returns the distinct posting identities in emission order.
func (d *Document) Keys() []term.Key {
	keys := make([]term.Key, len(d.order))
	copy(keys, d.order)
	return keys
}

// Posting returns the posting stored under k, if any.
func (d *Document) Posting(k term.Key) (term.Term, bool) {
	t, ok := d.postings[k]
	return t, ok
}

// TermCount returns the number of raw terms fed through AddTerm.
func (d *Document) TermCount() int {
	return d.termCount
}

// SourceByteCount returns the total bytes of raw term text consumed.
func (d *Document) SourceByteCount() int64 {
	return d.sourceBytes
}
