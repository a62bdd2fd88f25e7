package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/praveenmunagapati/BitFunnel/internal/catalog"
	"github.com/praveenmunagapati/BitFunnel/internal/document"
	"github.com/praveenmunagapati/BitFunnel/internal/ingest"
	"github.com/praveenmunagapati/BitFunnel/internal/tokenizer"
	apperrors "github.com/praveenmunagapati/BitFunnel/pkg/errors"
	"github.com/praveenmunagapati/BitFunnel/pkg/kafka"
	"github.com/praveenmunagapati/BitFunnel/pkg/logger"
	"github.com/praveenmunagapati/BitFunnel/pkg/metrics"
	"github.com/praveenmunagapati/BitFunnel/pkg/redis"
	"github.com/praveenmunagapati/BitFunnel/pkg/resilience"
)

const catalogTimeout = 2 * time.Second

// Pipeline drives documents from decoded events into the index. Cache and
// catalog are optional; a nil client disables that side effect.
type Pipeline struct {
	ingestor    *ingest.Ingestor
	metrics     *metrics.Metrics
	cache       *redis.Client
	catalog     *catalog.Catalog
	maxGramSize int
	logger      *slog.Logger

	// breaker guards cache invalidation so a dead Redis cannot slow
	// every ingest.
	breaker *resilience.CircuitBreaker

	// groupID reports the currently open group for catalog rows.
	groupID func() uint64
}

// SetGroupProvider supplies the id of the currently open ingestion group.
func (p *Pipeline) SetGroupProvider(fn func() uint64) {
	p.groupID = fn
}

func NewPipeline(ing *ingest.Ingestor, m *metrics.Metrics, cache *redis.Client, cat *catalog.Catalog, maxGramSize int) *Pipeline {
	return &Pipeline{
		ingestor:    ing,
		metrics:     m,
		cache:       cache,
		catalog:     cat,
		maxGramSize: maxGramSize,
		logger:      logger.WithComponent("feed"),
		breaker:     resilience.NewCircuitBreaker("cache-invalidation", resilience.CircuitBreakerConfig{}),
	}
}

// buildDocument tokenizes the event text into title and body streams.
func (p *Pipeline) buildDocument(event IngestEvent) *document.Document {
	doc := document.New(p.maxGramSize, nil)
	if event.Title != "" {
		doc.OpenStream(StreamTitle)
		for _, t := range tokenizer.Tokenize(event.Title) {
			doc.AddTerm(t)
		}
		doc.CloseStream()
	}
	doc.OpenStream(StreamBody)
	for _, t := range tokenizer.Tokenize(event.Body) {
		doc.AddTerm(t)
	}
	doc.CloseStream()
	return doc
}

// Ingest adds one document to the index and performs the side effects.
func (p *Pipeline) Ingest(ctx context.Context, event IngestEvent) error {
	start := time.Now()
	doc := p.buildDocument(event)

	err := p.ingestor.Add(ingest.DocID(event.DocID), doc)
	if err != nil {
		reason := "internal"
		switch apperrors.KindOf(err) {
		case apperrors.KindCallerInput:
			reason = "caller"
		case apperrors.KindCapacity:
			reason = "capacity"
		}
		p.metrics.IngestFailuresTotal.WithLabelValues(reason).Inc()
		return fmt.Errorf("adding document %d: %w", event.DocID, err)
	}

	p.metrics.DocsIngestedTotal.Inc()
	p.metrics.PostingsTotal.Add(float64(doc.PostingCount()))
	p.metrics.SourceBytesTotal.Add(float64(doc.SourceByteCount()))
	p.metrics.IngestLatency.Observe(time.Since(start).Seconds())
	p.updateShardGauges()

	if p.catalog != nil {
		var group uint64
		if p.groupID != nil {
			group = p.groupID()
		}
		cerr := resilience.WithTimeout(ctx, catalogTimeout, "catalog-add", func(ctx context.Context) error {
			return p.catalog.RecordAdd(ctx, event.DocID, group, doc.PostingCount(), doc.SourceByteCount())
		})
		if cerr != nil {
			p.logger.Error("catalog add failed", "doc_id", event.DocID, "error", cerr)
		}
	}
	p.invalidate(ctx, event.DocID)
	return nil
}

// Delete removes one document. Deleting an unknown id is not an error.
func (p *Pipeline) Delete(ctx context.Context, event DeleteEvent) {
	if !p.ingestor.Delete(ingest.DocID(event.DocID)) {
		p.logger.Debug("delete for unknown document", "doc_id", event.DocID)
		return
	}
	p.metrics.DocsDeletedTotal.Inc()
	p.updateShardGauges()

	if p.catalog != nil {
		err := resilience.WithTimeout(ctx, catalogTimeout, "catalog-delete", func(ctx context.Context) error {
			return p.catalog.MarkDeleted(ctx, event.DocID)
		})
		if err != nil {
			p.logger.Error("catalog delete failed", "doc_id", event.DocID, "error", err)
		}
	}
	p.invalidate(ctx, event.DocID)
}

func (p *Pipeline) invalidate(ctx context.Context, docID uint64) {
	if p.cache == nil {
		return
	}
	err := p.breaker.Execute(func() error {
		return p.cache.Del(ctx, fmt.Sprintf("doc:%d", docID))
	})
	if err != nil {
		p.logger.Error("cache invalidation failed", "doc_id", docID, "error", err)
		return
	}
	p.metrics.CacheInvalidations.Inc()
}

// InvalidateGroup drops the per-group cache entry and any cached query
// results after a group expiry.
func (p *Pipeline) InvalidateGroup(ctx context.Context, groupID uint64) {
	if p.cache == nil {
		return
	}
	err := p.breaker.Execute(func() error {
		return p.cache.Del(ctx, fmt.Sprintf("group:%d", groupID))
	})
	if err != nil {
		p.logger.Error("group cache invalidation failed", "group_id", groupID, "error", err)
		return
	}
	if n, err := p.cache.FlushByPattern(ctx, "query:*"); err != nil {
		p.logger.Error("query cache flush failed", "group_id", groupID, "error", err)
	} else {
		p.metrics.CacheInvalidations.Add(float64(n + 1))
	}
}

func (p *Pipeline) updateShardGauges() {
	for i := 0; i < p.ingestor.GetShardCount(); i++ {
		s := p.ingestor.GetShard(i)
		p.metrics.ShardDocCount.WithLabelValues(fmt.Sprint(s.ID())).Set(float64(s.DocCount()))
	}
}

// IngestHandler returns the Kafka handler for the document-ingest topic.
// Malformed payloads are logged and skipped so they cannot wedge the
// partition.
func (p *Pipeline) IngestHandler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[IngestEvent](value)
		if err != nil {
			p.logger.Error("malformed ingest event", "key", string(key), "error", err)
			return nil
		}
		if err := p.Ingest(ctx, event); err != nil {
			if apperrors.KindOf(err) == apperrors.KindCallerInput {
				p.logger.Warn("ingest rejected", "doc_id", event.DocID, "error", err)
				return nil
			}
			return err
		}
		p.logger.Debug("document ingested", "doc_id", event.DocID)
		return nil
	}
}

// DeleteHandler returns the Kafka handler for the document-delete topic.
func (p *Pipeline) DeleteHandler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[DeleteEvent](value)
		if err != nil {
			p.logger.Error("malformed delete event", "key", string(key), "error", err)
			return nil
		}
		p.Delete(ctx, event)
		return nil
	}
}
