package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"safetyrelay/pkg/models"
)

const (
	queryIsDelivered = `SELECT EXISTS (SELECT 1 FROM delivered_events WHERE event_id = $1)`

	queryMarkDelivered = `
		INSERT INTO delivered_events (event_id, event_type, sent_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id) DO UPDATE
		SET event_type = EXCLUDED.event_type, sent_at = EXCLUDED.sent_at`

	queryPurgeDelivered = `DELETE FROM delivered_events WHERE sent_at < $1`
)

type PostgresDeliveredRepository struct {
	db *sql.DB
}

func NewPostgresDeliveredRepository(db *sql.DB) *PostgresDeliveredRepository {
	return &PostgresDeliveredRepository{db: db}
}

func (r *PostgresDeliveredRepository) IsDelivered(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRowContext(ctx, queryIsDelivered, eventID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check delivered event: %w", err)
	}
	return exists, nil
}

func (r *PostgresDeliveredRepository) MarkDelivered(ctx context.Context, rec models.DeliveryRecord) error {
	if _, err := r.db.ExecContext(ctx, queryMarkDelivered, rec.EventID, rec.Type, rec.SentAt.UTC()); err != nil {
		return fmt.Errorf("failed to mark event delivered: %w", err)
	}
	return nil
}

func (r *PostgresDeliveredRepository) PurgeDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, queryPurgeDelivered, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge delivered events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read purge count: %w", err)
	}
	return n, nil
}
