// Package feed connects the Kafka event stream to the index: it decodes
// ingest and delete events, tokenizes document text into term streams,
// and drives the ingestion pipeline with metrics, cache invalidation, and
// catalog bookkeeping.
package feed

import (
	"time"

	"github.com/praveenmunagapati/BitFunnel/internal/term"
)

// Well-known stream ids. Title terms and body terms occupy separate
// streams so a title match is distinguishable from a body match.
const (
	StreamBody  term.StreamID = 0
	StreamTitle term.StreamID = 1
)

// IngestEvent is the Kafka payload for a document to be added.
type IngestEvent struct {
	DocID      uint64    `json:"doc_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	IngestedAt time.Time `json:"ingested_at"`
}

// DeleteEvent is the Kafka payload for a document removal.
type DeleteEvent struct {
	DocID     uint64    `json:"doc_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
