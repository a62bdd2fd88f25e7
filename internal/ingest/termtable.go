package ingest

import (
	"github.com/praveenmunagapati/BitFunnel/internal/term"
)

// TermTable maps a term to the term-row indices that represent it. The row
// assignment policy lives outside this core; the hashed table below is the
// default used when no external table is supplied.
type TermTable interface {
	RowsFor(t term.Term) []uint32
}

// hashedTermTable derives rowsPerTerm rows per term by reseeding the term
// hash with a splitmix64 step per row.
type hashedTermTable struct {
	rowCount    uint32
	rowsPerTerm int
}

// NewHashedTermTable creates the default hash-based term table.
func NewHashedTermTable(rowCount uint32, rowsPerTerm int) TermTable {
	return &hashedTermTable{rowCount: rowCount, rowsPerTerm: rowsPerTerm}
}

func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}

func (tt *hashedTermTable) RowsFor(t term.Term) []uint32 {
	rows := make([]uint32, tt.rowsPerTerm)
	x := t.Hash()
	for i := range rows {
		x = splitmix64(x)
		rows[i] = uint32(x % uint64(tt.rowCount))
	}
	return rows
}
