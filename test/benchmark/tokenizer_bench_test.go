package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/praveenmunagapati/BitFunnel/internal/tokenizer"
)

var sampleTexts = map[string]string{
	"short": "The quick brown fox jumps over the lazy dog",
	"medium": `Bit-sliced signature indexes pack the postings of many terms
        into shared machine words. Each term hashes to a handful of rows and
        a document matches when every row for the term has the document's
        column bit set. Phrase support comes from indexing n-grams alongside
        unigrams, so common phrases resolve without positional postings.`,
	"long": strings.Repeat(`Ingestion splits each document into streams,
        slides an n-gram window across the term sequence, and deduplicates
        the resulting postings before writing them into packed row storage.
        Deleted documents keep their column bits until every reader that
        might still observe them has drained, at which point the recycler
        clears the column and returns the slot to the free list. `, 20),
}

func BenchmarkTokenize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				terms := tokenizer.Tokenize(text)
				_ = terms
			}
		})
	}
}

func BenchmarkTokenizeParallel(b *testing.B) {
	text := sampleTexts["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			terms := tokenizer.Tokenize(text)
			_ = terms
		}
	})
}

func BenchmarkTokenizeVaryingSize(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	base := "packed signature rows column postings recycler epoch "
	for _, size := range sizes {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				terms := tokenizer.Tokenize(text)
				_ = terms
			}
		})
	}
}
