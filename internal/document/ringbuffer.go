package document

import (
	"fmt"

	"github.com/praveenmunagapati/BitFunnel/internal/term"
)

// RingBuffer is a fixed-capacity circular buffer of terms holding the
// trailing window needed for n-gram emission. Slots are constructed in
// place via the pointer returned by PushBack; each slot's term is owned
// exclusively by the buffer.
type RingBuffer struct {
	slots []term.Term
	head  int
	count int
}

// NewRingBuffer creates a buffer holding at most capacity terms.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity < 1 {
		panic(fmt.Sprintf("document: ring buffer capacity must be positive, got %d", capacity))
	}
	return &RingBuffer{slots: make([]term.Term, capacity)}
}

// PushBack claims the slot behind the newest element and returns it for
// in-place construction. It panics when the buffer is full; the Document
// drains before the window can overflow.
func (r *RingBuffer) PushBack() *term.Term {
	if r.count == len(r.slots) {
		panic("document: PushBack on full ring buffer")
	}
	slot := &r.slots[(r.head+r.count)%len(r.slots)]
	r.count++
	return slot
}

// PopFront discards the oldest element. It panics when the buffer is empty.
func (r *RingBuffer) PopFront() {
	if r.count == 0 {
		panic("document: PopFront on empty ring buffer")
	}
	r.slots[r.head] = term.Term{}
	r.head = (r.head + 1) % len(r.slots)
	r.count--
}

// At returns the i-th element counted from the oldest.
func (r *RingBuffer) At(i int) *term.Term {
	if i < 0 || i >= r.count {
		panic(fmt.Sprintf("document: ring buffer index %d out of range for count %d", i, r.count))
	}
	return &r.slots[(r.head+i)%len(r.slots)]
}

// Count returns the number of buffered terms.
func (r *RingBuffer) Count() int {
	return r.count
}

// Empty reports whether the buffer holds no terms.
func (r *RingBuffer) Empty() bool {
	return r.count == 0
}

// Reset discards all buffered terms.
func (r *RingBuffer) Reset() {
	for i := range r.slots {
		r.slots[i] = term.Term{}
	}
	r.head = 0
	r.count = 0
}
