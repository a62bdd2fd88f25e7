package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/praveenmunagapati/BitFunnel/internal/term"
)

// FileManager supplies the destinations for statistics artifacts. The
// locations are owned by the caller; this core only writes into them.
type FileManager interface {
	DocumentHistogram() (io.WriteCloser, error)
	CumulativeTermCounts(shard int) (io.WriteCloser, error)
	DocFrequencyTable(shard int) (io.WriteCloser, error)
	IndexedIdfTable(shard int) (io.WriteCloser, error)
}

// TermToText resolves a term hash back to human-readable text. When
// supplied, frequency entries carry the text alongside the hash.
type TermToText interface {
	Lookup(hash uint64) (string, bool)
}

// LocalFileManager writes statistics artifacts into a local directory.
type LocalFileManager struct {
	dir string
}

// NewLocalFileManager creates the directory if needed.
func NewLocalFileManager(dir string) (*LocalFileManager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating statistics directory: %w", err)
	}
	return &LocalFileManager{dir: dir}, nil
}

func (fm *LocalFileManager) create(name string) (io.WriteCloser, error) {
	f, err := os.Create(filepath.Join(fm.dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating statistics file %s: %w", name, err)
	}
	return f, nil
}

func (fm *LocalFileManager) DocumentHistogram() (io.WriteCloser, error) {
	return fm.create("document-histogram.csv")
}

func (fm *LocalFileManager) CumulativeTermCounts(shard int) (io.WriteCloser, error) {
	return fm.create(fmt.Sprintf("shard-%d-term-counts.csv", shard))
}

func (fm *LocalFileManager) DocFrequencyTable(shard int) (io.WriteCloser, error) {
	return fm.create(fmt.Sprintf("shard-%d-doc-frequencies.csv", shard))
}

func (fm *LocalFileManager) IndexedIdfTable(shard int) (io.WriteCloser, error) {
	return fm.create(fmt.Sprintf("shard-%d-indexed-idf.csv", shard))
}

// WriteStatistics writes the per-ingestor document histogram and, for each
// shard, the cumulative term counts, the document-frequency table, and the
// indexed IDF table, into locations supplied by the file manager. When
// termToText is non-nil, frequency rows carry readable text.
func (ing *Ingestor) WriteStatistics(fm FileManager, termToText TermToText) error {
	out, err := fm.DocumentHistogram()
	if err != nil {
		return err
	}
	if err := ing.histogram.Write(out); err != nil {
		out.Close()
		return fmt.Errorf("writing document histogram: %w", err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	for _, s := range ing.shards {
		if err := writeShardStatistics(fm, s, termToText); err != nil {
			return fmt.Errorf("shard %d statistics: %w", s.ID(), err)
		}
	}
	return nil
}

func writeShardStatistics(fm FileManager, s *Shard, termToText TermToText) error {
	out, err := fm.CumulativeTermCounts(s.ID())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "documents,terms\n%d,%d\n", s.DocCount(), s.TermCount())
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if err := writeFrequencyTable(fm, s, termToText); err != nil {
		return err
	}
	return writeIndexedIdf(fm, s)
}

func writeFrequencyTable(fm FileManager, s *Shard, termToText TermToText) error {
	out, err := fm.DocFrequencyTable(s.ID())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := fmt.Fprintln(out, "hash,stream,frequency,text"); err != nil {
		return err
	}
	for _, e := range s.FrequencyTable().Entries() {
		t := term.Term{Text: e.Key.Text, Stream: e.Key.Stream}
		text := ""
		if termToText != nil {
			if resolved, ok := termToText.Lookup(t.Hash()); ok {
				text = resolved
			}
		}
		if _, err := fmt.Fprintf(out, "%016x,%d,%d,%s\n", t.Hash(), e.Key.Stream, e.Count, text); err != nil {
			return err
		}
	}
	return nil
}

func writeIndexedIdf(fm FileManager, s *Shard) error {
	out, err := fm.IndexedIdfTable(s.ID())
	if err != nil {
		return err
	}
	defer out.Close()

	idf := term.BuildIndexedIdf(s.FrequencyTable())
	type row struct {
		hash uint64
		idf  term.IdfX10
	}
	rows := make([]row, 0, idf.Len())
	idf.Each(func(hash uint64, v term.IdfX10) {
		rows = append(rows, row{hash: hash, idf: v})
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].hash < rows[j].hash })

	if _, err := fmt.Fprintln(out, "hash,idfX10"); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintf(out, "%016x,%d\n", r.hash, r.idf); err != nil {
			return err
		}
	}
	return nil
}
