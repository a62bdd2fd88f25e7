package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/praveenmunagapati/BitFunnel/internal/catalog"
	"github.com/praveenmunagapati/BitFunnel/internal/ingest"
	apperrors "github.com/praveenmunagapati/BitFunnel/pkg/errors"
	"github.com/praveenmunagapati/BitFunnel/pkg/logger"
	"github.com/praveenmunagapati/BitFunnel/pkg/metrics"
)

// GroupRotator opens a fresh ingestion group on a fixed cadence and
// expires closed groups once they fall outside the retention window. Group
// ids are allocation timestamps, so they are strictly increasing and never
// reused.
type GroupRotator struct {
	ingestor  *ingest.Ingestor
	pipeline  *Pipeline
	catalog   *catalog.Catalog
	metrics   *metrics.Metrics
	rotation  time.Duration
	retention time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	current uint64
	closed  map[uint64]time.Time
}

func NewGroupRotator(ing *ingest.Ingestor, p *Pipeline, cat *catalog.Catalog, m *metrics.Metrics, rotation, retention time.Duration) *GroupRotator {
	return &GroupRotator{
		ingestor:  ing,
		pipeline:  p,
		catalog:   cat,
		metrics:   m,
		rotation:  rotation,
		retention: retention,
		logger:    logger.WithComponent("group-rotator"),
		closed:    make(map[uint64]time.Time),
	}
}

// Current returns the id of the open group, or zero before the first
// rotation.
func (r *GroupRotator) Current() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Run opens the first group, then rotates and expires on the configured
// cadence until ctx is cancelled.
func (r *GroupRotator) Run(ctx context.Context) error {
	if err := r.rotate(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(r.rotation)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.rotate(ctx); err != nil {
				r.logger.Error("group rotation failed", "error", err)
			}
			r.expire(ctx)
		}
	}
}

func (r *GroupRotator) rotate(ctx context.Context) error {
	id := uint64(time.Now().UnixNano())

	r.mu.Lock()
	previous := r.current
	r.mu.Unlock()

	if err := r.ingestor.OpenGroup(ingest.GroupID(id)); err != nil {
		return err
	}

	r.mu.Lock()
	r.current = id
	if previous != 0 {
		r.closed[previous] = time.Now()
	}
	r.mu.Unlock()

	if r.catalog != nil {
		if err := r.catalog.RecordGroupOpened(ctx, id); err != nil {
			r.logger.Error("catalog group open failed", "group_id", id, "error", err)
		}
		if previous != 0 {
			if err := r.catalog.RecordGroupClosed(ctx, previous); err != nil {
				r.logger.Error("catalog group close failed", "group_id", previous, "error", err)
			}
		}
	}
	r.logger.Info("group rotated", "group_id", id, "previous", previous)
	return nil
}

// expire removes groups whose close time is older than the retention
// window. The catalog is authoritative when present; otherwise the
// in-memory close times collected since startup are used.
func (r *GroupRotator) expire(ctx context.Context) {
	cutoff := time.Now().Add(-r.retention)

	var expirable []uint64
	if r.catalog != nil {
		ids, err := r.catalog.ListExpirable(ctx, cutoff)
		if err != nil {
			r.logger.Error("listing expirable groups failed", "error", err)
			return
		}
		expirable = ids
	} else {
		r.mu.Lock()
		for id, closedAt := range r.closed {
			if closedAt.Before(cutoff) {
				expirable = append(expirable, id)
			}
		}
		r.mu.Unlock()
	}

	for _, id := range expirable {
		deleted, err := r.ingestor.ExpireGroup(ingest.GroupID(id))
		if err != nil {
			if errors.Is(err, apperrors.ErrUnknownGroup) {
				// A group from a previous process run; its documents were
				// never replayed, so only the record needs retiring.
				if r.catalog != nil {
					if cerr := r.catalog.RecordGroupExpired(ctx, id); cerr != nil {
						r.logger.Error("catalog group expiry failed", "group_id", id, "error", cerr)
					}
				}
				continue
			}
			r.logger.Error("group expiry failed", "group_id", id, "error", err)
			continue
		}
		r.mu.Lock()
		delete(r.closed, id)
		r.mu.Unlock()

		r.metrics.GroupsExpiredTotal.Inc()
		if r.catalog != nil {
			if err := r.catalog.RecordGroupExpired(ctx, id); err != nil {
				r.logger.Error("catalog group expiry failed", "group_id", id, "error", err)
			}
		}
		r.pipeline.InvalidateGroup(ctx, id)
		r.logger.Info("group expired", "group_id", id, "documents_deleted", deleted)
	}
}
