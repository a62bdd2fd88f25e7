package term

import (
	"math"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// FrequencyTable tracks how many documents each term identity appears in
// and derives inverse-document-frequency weights from those counts. It is
// safe for concurrent use.
type FrequencyTable struct {
	mu     sync.RWMutex
	counts map[Key]uint64
	docs   uint64
}

// NewFrequencyTable creates an empty table.
func NewFrequencyTable() *FrequencyTable {
	return &FrequencyTable{counts: make(map[Key]uint64)}
}

// RecordDocument bumps the corpus document count and records one occurrence
// for each distinct term key in the document.
func (ft *FrequencyTable) RecordDocument(keys []Key) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.docs++
	for _, k := range keys {
		ft.counts[k]++
	}
}

// Frequency returns the number of documents the term appears in.
func (ft *FrequencyTable) Frequency(k Key) uint64 {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	return ft.counts[k]
}

// DocumentCount returns the number of documents recorded so far.
func (ft *FrequencyTable) DocumentCount() uint64 {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	return ft.docs
}

// Idf returns log10(docs/df) for the term text in the default stream, or 0
// for terms never seen.
func (ft *FrequencyTable) Idf(text string) float32 {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	df := ft.counts[Key{Text: text}]
	if df == 0 || ft.docs == 0 {
		return 0
	}
	return float32(math.Log10(float64(ft.docs) / float64(df)))
}

// FrequencyEntry is one row of the document-frequency report.
type FrequencyEntry struct {
	Key   Key
	Count uint64
}

// Entries returns all rows sorted by descending count, ties broken by text,
// for statistics output.
func (ft *FrequencyTable) Entries() []FrequencyEntry {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	entries := make([]FrequencyEntry, 0, len(ft.counts))
	for k, c := range ft.counts {
		entries = append(entries, FrequencyEntry{Key: k, Count: c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key.Text < entries[j].Key.Text
	})
	return entries
}

// IdfX10 is an inverse document frequency quantized to tenths.
type IdfX10 uint8

// MaxIdfX10 caps quantized IDF values; rarer terms saturate at the cap.
const MaxIdfX10 IdfX10 = 60

// QuantizeIdf rounds an IDF to tenths and clamps it to MaxIdfX10.
func QuantizeIdf(idf float64) IdfX10 {
	if idf <= 0 {
		return 0
	}
	q := uint64(math.Round(idf * 10))
	if q > uint64(MaxIdfX10) {
		return MaxIdfX10
	}
	return IdfX10(q)
}

// IndexedIdf maps term hashes to quantized IDF values. It is an immutable
// snapshot built from a FrequencyTable.
type IndexedIdf struct {
	entries map[uint64]IdfX10
}

// BuildIndexedIdf snapshots the frequency table into an indexed IDF table.
func BuildIndexedIdf(ft *FrequencyTable) *IndexedIdf {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	entries := make(map[uint64]IdfX10, len(ft.counts))
	for k, df := range ft.counts {
		idf := 0.0
		if df > 0 && ft.docs > 0 {
			idf = math.Log10(float64(ft.docs) / float64(df))
		}
		d := xxhash.New()
		_, _ = d.WriteString(k.Text)
		_, _ = d.Write([]byte{byte(k.Stream)})
		entries[d.Sum64()] = QuantizeIdf(idf)
	}
	return &IndexedIdf{entries: entries}
}

// Lookup returns the quantized IDF for a term hash.
func (t *IndexedIdf) Lookup(hash uint64) (IdfX10, bool) {
	v, ok := t.entries[hash]
	return v, ok
}

// Len returns the number of indexed terms.
func (t *IndexedIdf) Len() int {
	return len(t.entries)
}

// Each calls fn for every (hash, idf) pair in unspecified order.
func (t *IndexedIdf) Each(fn func(hash uint64, idf IdfX10)) {
	for h, v := range t.entries {
		fn(h, v)
	}
}
