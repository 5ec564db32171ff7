package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/creatorpay/internal/domain"
)

type outbox struct {
	db *pgxpool.Pool
}

// ListPending returns the oldest unpublished records. A single publisher loop
// runs per deployment, so rows are not claimed.
func (o *outbox) ListPending(ctx context.Context, limit int) ([]domain.OutboxRecord, error) {
	rows, err := o.db.Query(ctx,
		`SELECT id, event_type, partition_key, payload, status, attempts, last_error, created_at, published_at
		FROM outbox WHERE status = 'pending' ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox query failed: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.OutboxRecord, error) {
		var rec domain.OutboxRecord
		err := row.Scan(&rec.ID, &rec.EventType, &rec.PartitionKey, &rec.Payload, &rec.Status,
			&rec.Attempts, &rec.LastError, &rec.CreatedAt, &rec.PublishedAt)
		return rec, err
	})
}

func (o *outbox) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := o.db.Exec(ctx,
		"UPDATE outbox SET status = 'published', published_at = $1 WHERE id = $2", at, id)
	if err != nil {
		return fmt.Errorf("outbox publish mark failed: %w", err)
	}
	return nil
}

func (o *outbox) MarkFailed(ctx context.Context, id uuid.UUID, reason string, deadLetter bool) error {
	status := domain.OutboxPending
	if deadLetter {
		status = domain.OutboxDeadLettered
	}
	_, err := o.db.Exec(ctx,
		"UPDATE outbox SET attempts = attempts + 1, last_error = $1, status = $2 WHERE id = $3",
		reason, status, id)
	if err != nil {
		return fmt.Errorf("outbox failure mark failed: %w", err)
	}
	return nil
}
