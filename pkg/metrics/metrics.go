// Package metrics defines the Prometheus metric collectors used across the
// ingestion core and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the ingestion core.
type Metrics struct {
	DocsIngestedTotal    prometheus.Counter
	DocsDeletedTotal     prometheus.Counter
	IngestFailuresTotal  *prometheus.CounterVec
	PostingsTotal        prometheus.Counter
	SourceBytesTotal     prometheus.Counter
	GroupsExpiredTotal   prometheus.Counter
	ShardDocCount        *prometheus.GaugeVec
	EpochAdvancesTotal   prometheus.Counter
	PendingReclamations  prometheus.Gauge
	IngestLatency        prometheus.Histogram
	CacheInvalidations   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		DocsIngestedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_documents_total",
				Help: "Total documents added to the index.",
			},
		),
		DocsDeletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_documents_deleted_total",
				Help: "Total documents deleted from the index.",
			},
		),
		IngestFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_failures_total",
				Help: "Total failed Add operations by reason (capacity, duplicate, other).",
			},
			[]string{"reason"},
		),
		PostingsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_postings_total",
				Help: "Total postings written across all ingested documents.",
			},
		),
		SourceBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_source_bytes_total",
				Help: "Total bytes of source document text ingested.",
			},
		),
		GroupsExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ingest_groups_expired_total",
				Help: "Total groups expired in bulk.",
			},
		),
		ShardDocCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shard_document_count",
				Help: "Number of live documents per shard.",
			},
			[]string{"shard_id"},
		),
		EpochAdvancesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "epoch_advances_total",
				Help: "Total global epoch advances performed by the recycler.",
			},
		),
		PendingReclamations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pending_reclamations",
				Help: "Retired resources waiting for outstanding reader tokens.",
			},
		),
		IngestLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ingest_latency_seconds",
				Help:    "Latency of a single Add operation in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
		),
		CacheInvalidations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_invalidations_total",
				Help: "Total query-cache invalidations issued on delete/expire.",
			},
		),
	}

	prometheus.MustRegister(
		m.DocsIngestedTotal,
		m.DocsDeletedTotal,
		m.IngestFailuresTotal,
		m.PostingsTotal,
		m.SourceBytesTotal,
		m.GroupsExpiredTotal,
		m.ShardDocCount,
		m.EpochAdvancesTotal,
		m.PendingReclamations,
		m.IngestLatency,
		m.CacheInvalidations,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
