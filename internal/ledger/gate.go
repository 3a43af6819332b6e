package ledger

import (
	"context"
	"time"

	"safetyrelay/internal/logger"
	apperrors "safetyrelay/pkg/errors"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/models"
)

// Gate applies the ledger's failure policy on top of a Store: a failed read
// counts as "not seen" so a real event is never silently dropped, and a
// failed write is logged without undoing a send that already happened.
type Gate struct {
	store  Store
	logger logger.Logger
	now    func() time.Time
}

func NewGate(store Store, log logger.Logger) *Gate {
	return &Gate{store: store, logger: log, now: time.Now}
}

// Seen reports whether ev was already delivered. Safety events also consult
// the processed log.
func (g *Gate) Seen(ctx context.Context, ev models.UnifiedEvent) bool {
	if g.IsDelivered(ctx, ev.ID) {
		return true
	}
	if ev.IsSafety() && g.IsProcessed(ctx, ev.ID) {
		return true
	}
	return false
}

func (g *Gate) IsDelivered(ctx context.Context, eventID string) bool {
	start := time.Now()
	ok, err := g.store.IsDelivered(ctx, eventID)
	g.observe("delivered", "is_delivered", start, err)
	if err != nil {
		g.logger.WarnwCtx(ctx, "Ledger read failed, treating event as not delivered",
			"event_id", eventID,
			"error", apperrors.ErrPersistence.WithCause(err),
		)
		return false
	}
	return ok
}

func (g *Gate) IsProcessed(ctx context.Context, eventID string) bool {
	start := time.Now()
	ok, err := g.store.IsProcessed(ctx, eventID)
	g.observe("processed", "is_processed", start, err)
	if err != nil {
		g.logger.WarnwCtx(ctx, "Processed log read failed, treating event as new",
			"event_id", eventID,
			"error", apperrors.ErrPersistence.WithCause(err),
		)
		return false
	}
	return ok
}

// Record writes the ledger row and the audit entry for a confirmed send.
func (g *Gate) Record(ctx context.Context, ev models.UnifiedEvent, outcome, mode string) {
	now := g.now().UTC()

	start := time.Now()
	err := g.store.MarkDelivered(ctx, models.DeliveryRecord{EventID: ev.ID, Type: ev.Type, SentAt: now})
	g.observe("delivered", "mark_delivered", start, err)
	if err != nil {
		g.logger.ErrorwCtx(ctx, "Failed to write delivery ledger",
			"event_id", ev.ID,
			"error", apperrors.ErrPersistence.WithCause(err),
		)
	}

	start = time.Now()
	err = g.store.LogProcessed(ctx, models.ProcessedRecord{
		EventID:     ev.ID,
		Source:      ev.Source,
		Type:        ev.Type,
		VehicleName: ev.VehicleName,
		Outcome:     outcome,
		Mode:        mode,
		DecidedAt:   now,
	})
	g.observe("processed", "log_processed", start, err)
	if err != nil {
		g.logger.ErrorwCtx(ctx, "Failed to write processed log",
			"event_id", ev.ID,
			"error", apperrors.ErrPersistence.WithCause(err),
		)
	}
}

// Purge removes ledger and audit rows older than retention.
func (g *Gate) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := g.now().Add(-retention)

	start := time.Now()
	delivered, err := g.store.PurgeDeliveredBefore(ctx, cutoff)
	g.observe("delivered", "purge", start, err)
	if err != nil {
		return 0, apperrors.ErrPersistence.WithCause(err)
	}
	metrics.LedgerPurgedTotal.Add(float64(delivered))

	start = time.Now()
	processed, err := g.store.PurgeProcessedBefore(ctx, cutoff)
	g.observe("processed", "purge", start, err)
	if err != nil {
		g.logger.WarnwCtx(ctx, "Processed log purge failed", "error", err)
	}

	g.logger.InfowCtx(ctx, "Ledger housekeeping finished",
		"cutoff", cutoff,
		"delivered_purged", delivered,
		"processed_purged", processed,
	)
	return delivered, nil
}

func (g *Gate) observe(store, op string, start time.Time, err error) {
	metrics.IncLedgerOperation(store, op, err)
	metrics.ObserveLedgerOperation(store, op, time.Since(start))
}
