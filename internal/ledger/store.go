// Package ledger records which events were delivered and which were
// processed, so restarts and overlapping windows never resend.
package ledger

import (
	"context"
	"time"

	"safetyrelay/pkg/models"
)

// DeliveredRepository is the at-most-once delivery ledger. MarkDelivered
// must be an upsert keyed by event id.
type DeliveredRepository interface {
	IsDelivered(ctx context.Context, eventID string) (bool, error)
	MarkDelivered(ctx context.Context, rec models.DeliveryRecord) error
	PurgeDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ProcessedRepository is the audit log of decided events.
type ProcessedRepository interface {
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	LogProcessed(ctx context.Context, rec models.ProcessedRecord) error
	PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store bundles both repositories. They stay independent: a hit in one
// never implies a hit in the other.
type Store interface {
	DeliveredRepository
	ProcessedRepository
}

type composite struct {
	DeliveredRepository
	ProcessedRepository
}

// Compose joins separately backed repositories into one Store.
func Compose(delivered DeliveredRepository, processed ProcessedRepository) Store {
	return composite{DeliveredRepository: delivered, ProcessedRepository: processed}
}
