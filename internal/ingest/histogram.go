package ingest

import (
	"fmt"
	"io"
	"sort"
	"sync"
)

// DocumentHistogram buckets ingested documents by posting count for the
// statistics report.
type DocumentHistogram struct {
	mu     sync.Mutex
	counts map[int]uint64
	total  uint64
}

// NewDocumentHistogram creates an empty histogram.
func NewDocumentHistogram() *DocumentHistogram {
	return &DocumentHistogram{counts: make(map[int]uint64)}
}

// Record adds one document with the given posting count.
func (h *DocumentHistogram) Record(postingCount int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[postingCount]++
	h.total++
}

// Total returns the number of documents recorded.
func (h *DocumentHistogram) Total() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// Write emits the histogram as CSV rows of (postings, documents), ordered
// by ascending posting count.
func (h *DocumentHistogram) Write(w io.Writer) error {
	h.mu.Lock()
	buckets := make([]int, 0, len(h.counts))
	for k := range h.counts {
		buckets = append(buckets, k)
	}
	snapshot := make(map[int]uint64, len(h.counts))
	for k, v := range h.counts {
		snapshot[k] = v
	}
	h.mu.Unlock()

	sort.Ints(buckets)
	if _, err := fmt.Fprintln(w, "postings,documents"); err != nil {
		return err
	}
	for _, b := range buckets {
		if _, err := fmt.Fprintf(w, "%d,%d\n", b, snapshot[b]); err != nil {
			return err
		}
	}
	return nil
}
