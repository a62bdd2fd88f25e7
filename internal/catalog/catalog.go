// Package catalog keeps a durable record of index membership in
// PostgreSQL. The in-memory index is rebuilt from the event stream after a
// restart; the catalog is the audit trail operators query to know which
// documents and groups the index has seen, and it drives retention-based
// group expiry.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/praveenmunagapati/BitFunnel/pkg/logger"
	"github.com/praveenmunagapati/BitFunnel/pkg/postgres"
)

// Catalog records document and group lifecycle events.
//
// It requires two tables:
//
//	CREATE TABLE catalog_documents (
//	    doc_id      BIGINT PRIMARY KEY,
//	    group_id    BIGINT,
//	    postings    INT NOT NULL,
//	    source_bytes BIGINT NOT NULL,
//	    added_at    TIMESTAMPTZ NOT NULL,
//	    deleted_at  TIMESTAMPTZ
//	);
//
//	CREATE TABLE catalog_groups (
//	    group_id   BIGINT PRIMARY KEY,
//	    opened_at  TIMESTAMPTZ NOT NULL,
//	    closed_at  TIMESTAMPTZ,
//	    expired_at TIMESTAMPTZ
//	);
type Catalog struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Catalog {
	return &Catalog{
		db:     db,
		logger: logger.WithComponent("catalog"),
	}
}

// RecordAdd upserts a document row. Re-adding a previously deleted id
// clears its deletion timestamp.
func (c *Catalog) RecordAdd(ctx context.Context, docID, groupID uint64, postings int, sourceBytes int64) error {
	_, err := c.db.DB.ExecContext(ctx,
		`INSERT INTO catalog_documents (doc_id, group_id, postings, source_bytes, added_at, deleted_at)
		 VALUES ($1, $2, $3, $4, $5, NULL)
		 ON CONFLICT (doc_id) DO UPDATE
		 SET group_id = $2, postings = $3, source_bytes = $4, added_at = $5, deleted_at = NULL`,
		int64(docID), int64(groupID), postings, sourceBytes, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording document add: %w", err)
	}
	return nil
}

// MarkDeleted stamps a document's deletion time. Unknown ids are a no-op.
func (c *Catalog) MarkDeleted(ctx context.Context, docID uint64) error {
	_, err := c.db.DB.ExecContext(ctx,
		`UPDATE catalog_documents SET deleted_at = $2 WHERE doc_id = $1 AND deleted_at IS NULL`,
		int64(docID), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("marking document deleted: %w", err)
	}
	return nil
}

// RecordGroupOpened inserts a group row.
func (c *Catalog) RecordGroupOpened(ctx context.Context, groupID uint64) error {
	_, err := c.db.DB.ExecContext(ctx,
		`INSERT INTO catalog_groups (group_id, opened_at) VALUES ($1, $2)
		 ON CONFLICT (group_id) DO NOTHING`,
		int64(groupID), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording group open: %w", err)
	}
	return nil
}

// RecordGroupClosed stamps a group's close time.
func (c *Catalog) RecordGroupClosed(ctx context.Context, groupID uint64) error {
	_, err := c.db.DB.ExecContext(ctx,
		`UPDATE catalog_groups SET closed_at = $2 WHERE group_id = $1 AND closed_at IS NULL`,
		int64(groupID), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording group close: %w", err)
	}
	return nil
}

// RecordGroupExpired stamps the group and all its documents in one
// transaction.
func (c *Catalog) RecordGroupExpired(ctx context.Context, groupID uint64) error {
	now := time.Now().UTC()
	err := c.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE catalog_groups SET expired_at = $2 WHERE group_id = $1 AND expired_at IS NULL`,
			int64(groupID), now,
		); err != nil {
			return fmt.Errorf("stamping group: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE catalog_documents SET deleted_at = $2 WHERE group_id = $1 AND deleted_at IS NULL`,
			int64(groupID), now,
		); err != nil {
			return fmt.Errorf("stamping group documents: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("recording group expiry: %w", err)
	}
	c.logger.Info("group expiry recorded", "group_id", groupID)
	return nil
}

// ListExpirable returns ids of closed, unexpired groups whose close time
// is older than cutoff, oldest first.
func (c *Catalog) ListExpirable(ctx context.Context, cutoff time.Time) ([]uint64, error) {
	rows, err := c.db.DB.QueryContext(ctx,
		`SELECT group_id FROM catalog_groups
		 WHERE closed_at IS NOT NULL AND expired_at IS NULL AND closed_at < $1
		 ORDER BY closed_at`,
		cutoff.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing expirable groups: %w", err)
	}
	defer rows.Close()

	var ids []uint64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	return ids, rows.Err()
}

// LiveDocumentCount returns the number of documents without a deletion
// stamp, for reconciliation against the in-memory count.
func (c *Catalog) LiveDocumentCount(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_documents WHERE deleted_at IS NULL`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting live documents: %w", err)
	}
	return n, nil
}
