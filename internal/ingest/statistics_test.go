package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/praveenmunagapati/BitFunnel/internal/term"
)

type mapTermToText map[uint64]string

func (m mapTermToText) Lookup(hash uint64) (string, bool) {
	text, ok := m[hash]
	return text, ok
}

func TestWriteStatistics(t *testing.T) {
	cfg := testConfig()
	cfg.ShardCount = 1
	ing := newTestIngestor(t, cfg)

	require.NoError(t, ing.Add(1, makeDoc(t, "dog", "cat")))
	require.NoError(t, ing.Add(2, makeDoc(t, "dog")))

	dir := t.TempDir()
	fm, err := NewLocalFileManager(dir)
	require.NoError(t, err)

	dog := term.New("dog", 0, nil)
	require.NoError(t, ing.WriteStatistics(fm, mapTermToText{dog.Hash(): "dog"}))

	hist, err := os.ReadFile(filepath.Join(dir, "document-histogram.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(hist)), "\n")
	require.Equal(t, "postings,documents", lines[0])
	// One document with 1 posting, one with 3 ("dog", "cat", "dog cat").
	require.Contains(t, lines, "1,1")
	require.Contains(t, lines, "3,1")

	counts, err := os.ReadFile(filepath.Join(dir, "shard-0-term-counts.csv"))
	require.NoError(t, err)
	require.Equal(t, "documents,terms\n2,4\n", string(counts))

	freq, err := os.ReadFile(filepath.Join(dir, "shard-0-doc-frequencies.csv"))
	require.NoError(t, err)
	freqLines := strings.Split(strings.TrimSpace(string(freq)), "\n")
	require.Equal(t, "hash,stream,frequency,text", freqLines[0])
	// "dog" appears in both documents and sorts first.
	require.True(t, strings.HasSuffix(freqLines[1], ",0,2,dog"), freqLines[1])

	idf, err := os.ReadFile(filepath.Join(dir, "shard-0-indexed-idf.csv"))
	require.NoError(t, err)
	idfLines := strings.Split(strings.TrimSpace(string(idf)), "\n")
	require.Equal(t, "hash,idfX10", idfLines[0])
	require.Len(t, idfLines, 4)
}

func TestDocumentHistogram(t *testing.T) {
	h := NewDocumentHistogram()
	h.Record(3)
	h.Record(3)
	h.Record(7)
	require.Equal(t, uint64(3), h.Total())

	var sb strings.Builder
	require.NoError(t, h.Write(&sb))
	require.Equal(t, "postings,documents\n3,2\n7,1\n", sb.String())
}
