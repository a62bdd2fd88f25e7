package feed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praveenmunagapati/BitFunnel/internal/ingest"
	"github.com/praveenmunagapati/BitFunnel/internal/term"
	"github.com/praveenmunagapati/BitFunnel/pkg/config"
	"github.com/praveenmunagapati/BitFunnel/pkg/metrics"
)

// The Prometheus default registry rejects duplicate registration, so all
// tests in this package share one Metrics instance.
var testMetrics = metrics.New()

func newTestPipeline(t *testing.T) (*Pipeline, *ingest.Ingestor) {
	t.Helper()
	cfg := config.IndexConfig{
		ShardCount:      1,
		ShardCapacity:   16,
		TermRowCount:    256,
		RowsPerTerm:     2,
		FactRowCount:    4,
		MaxGramSize:     2,
		RecycleInterval: time.Millisecond,
	}
	ing, err := ingest.New(cfg)
	require.NoError(t, err)
	t.Cleanup(ing.Shutdown)
	return NewPipeline(ing, testMetrics, nil, nil, cfg.MaxGramSize), ing
}

func TestIngestEventAddsDocument(t *testing.T) {
	p, ing := newTestPipeline(t)

	err := p.Ingest(context.Background(), IngestEvent{
		DocID: 1,
		Title: "packed arrays",
		Body:  "a packed array holds fixed width entries",
	})
	require.NoError(t, err)
	require.True(t, ing.Contains(1))

	h, ok := ing.GetHandle(1)
	require.True(t, ok)
	// Title terms land in the title stream, body terms in the body stream.
	require.True(t, h.HasPosting(term.New("pack", StreamTitle, nil)))
	require.True(t, h.HasPosting(term.New("hold", StreamBody, nil)))
	require.False(t, h.HasPosting(term.New("hold", StreamTitle, nil)))
}

func TestIngestHandlerSkipsDuplicates(t *testing.T) {
	p, ing := newTestPipeline(t)
	handler := p.IngestHandler()

	payload, err := json.Marshal(IngestEvent{DocID: 2, Body: "same document twice"})
	require.NoError(t, err)

	require.NoError(t, handler(context.Background(), []byte("2"), payload))
	require.NoError(t, handler(context.Background(), []byte("2"), payload),
		"duplicate must not poison the partition")
	require.True(t, ing.Contains(2))
}

func TestIngestHandlerSkipsMalformedPayload(t *testing.T) {
	p, _ := newTestPipeline(t)
	handler := p.IngestHandler()
	require.NoError(t, handler(context.Background(), nil, []byte("{not json")))
}

func TestDeleteHandler(t *testing.T) {
	p, ing := newTestPipeline(t)

	require.NoError(t, p.Ingest(context.Background(), IngestEvent{DocID: 3, Body: "to be removed"}))
	require.True(t, ing.Contains(3))

	payload, err := json.Marshal(DeleteEvent{DocID: 3})
	require.NoError(t, err)
	require.NoError(t, p.DeleteHandler()(context.Background(), []byte("3"), payload))
	require.False(t, ing.Contains(3))

	// Deleting again is a no-op, not an error.
	require.NoError(t, p.DeleteHandler()(context.Background(), []byte("3"), payload))
}

func TestEmptyBodyStillIngests(t *testing.T) {
	p, ing := newTestPipeline(t)
	require.NoError(t, p.Ingest(context.Background(), IngestEvent{DocID: 4, Title: "only title"}))
	require.True(t, ing.Contains(4))
}
