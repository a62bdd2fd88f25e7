// Package benchmark measures throughput and allocation behaviour of the
// packed row storage, n-gram extraction, and the ingestion pipeline.
package benchmark

import (
	"fmt"
	"testing"
	"time"

	"github.com/praveenmunagapati/BitFunnel/internal/document"
	"github.com/praveenmunagapati/BitFunnel/internal/ingest"
	"github.com/praveenmunagapati/BitFunnel/internal/packed"
	"github.com/praveenmunagapati/BitFunnel/pkg/config"
)

func benchConfig() config.IndexConfig {
	return config.IndexConfig{
		ShardCount:      4,
		ShardCapacity:   1 << 16,
		TermRowCount:    1 << 14,
		RowsPerTerm:     3,
		FactRowCount:    64,
		MaxGramSize:     2,
		RecycleInterval: 100 * time.Millisecond,
	}
}

// BenchmarkPackedArraySet measures raw bit-addressed write throughput.
func BenchmarkPackedArraySet(b *testing.B) {
	for _, bits := range []uint64{1, 9, 32, 56} {
		b.Run(fmt.Sprintf("bits_%d", bits), func(b *testing.B) {
			arr, err := packed.New(1<<16, bits, false)
			if err != nil {
				b.Fatal(err)
			}
			defer arr.Close()
			mask := uint64(1<<16 - 1)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				arr.Set(uint64(i)&mask, uint64(i))
			}
		})
	}
}

// BenchmarkPackedArrayGet measures raw read throughput over a pre-filled
// array.
func BenchmarkPackedArrayGet(b *testing.B) {
	arr, err := packed.New(1<<16, 9, false)
	if err != nil {
		b.Fatal(err)
	}
	defer arr.Close()
	for i := uint64(0); i < 1<<16; i++ {
		arr.Set(i, i%512)
	}
	mask := uint64(1<<16 - 1)
	b.ReportAllocs()
	b.ResetTimer()
	var sink uint64
	for i := 0; i < b.N; i++ {
		sink += arr.Get(uint64(i) & mask)
	}
	_ = sink
}

// BenchmarkDocumentNGrams measures sliding-window posting extraction.
func BenchmarkDocumentNGrams(b *testing.B) {
	words := []string{
		"bit", "sliced", "signatures", "pack", "term", "postings",
		"into", "shared", "rows", "for", "cache", "efficient", "scans",
	}
	for _, gram := range []int{1, 2, 3} {
		b.Run(fmt.Sprintf("maxgram_%d", gram), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				doc := document.New(gram, nil)
				doc.OpenStream(0)
				for _, w := range words {
					doc.AddTerm(w)
				}
				doc.CloseStream()
			}
		})
	}
}

// BenchmarkIngestorAdd measures end-to-end document insertion, including
// shard placement and row writes.
func BenchmarkIngestorAdd(b *testing.B) {
	ing, err := ingest.New(benchConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer ing.Shutdown()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		doc := document.New(2, nil)
		doc.OpenStream(0)
		doc.AddTerm("benchmark")
		doc.AddTerm(fmt.Sprintf("term%d", i%1024))
		doc.AddTerm("document")
		doc.CloseStream()
		if err := ing.Add(ingest.DocID(i), doc); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkIngestorContains measures membership probes against a populated
// index, the hot path for delete-aware readers.
func BenchmarkIngestorContains(b *testing.B) {
	ing, err := ingest.New(benchConfig())
	if err != nil {
		b.Fatal(err)
	}
	defer ing.Shutdown()

	const docs = 10000
	for i := 0; i < docs; i++ {
		doc := document.New(2, nil)
		doc.OpenStream(0)
		doc.AddTerm(fmt.Sprintf("term%d", i%256))
		doc.CloseStream()
		if err := ing.Add(ingest.DocID(i), doc); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			ing.Contains(ingest.DocID(i % docs))
			i++
		}
	})
}
