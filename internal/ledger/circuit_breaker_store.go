package ledger

import (
	"context"
	"fmt"
	"time"

	"safetyrelay/internal/config"
	"safetyrelay/pkg/circuitbreaker"
	"safetyrelay/pkg/models"
)

// CircuitBreakerStore fails fast while the backing databases are down so a
// tick does not wait out one timeout per event.
type CircuitBreakerStore struct {
	store Store
	cb    *circuitbreaker.Wrapper
}

// NewCircuitBreakerStore returns store unchanged when breakers are disabled.
func NewCircuitBreakerStore(store Store, cfg config.CircuitBreakerConfig) Store {
	if !cfg.Enabled {
		return store
	}
	return &CircuitBreakerStore{
		store: store,
		cb:    circuitbreaker.NewWrapper(circuitbreaker.FromSettings("ledger", cfg)),
	}
}

func (s *CircuitBreakerStore) IsDelivered(ctx context.Context, eventID string) (bool, error) {
	return s.check(ctx, func() (bool, error) { return s.store.IsDelivered(ctx, eventID) })
}

func (s *CircuitBreakerStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	return s.check(ctx, func() (bool, error) { return s.store.IsProcessed(ctx, eventID) })
}

func (s *CircuitBreakerStore) MarkDelivered(ctx context.Context, rec models.DeliveryRecord) error {
	return s.run(ctx, func() error { return s.store.MarkDelivered(ctx, rec) })
}

func (s *CircuitBreakerStore) LogProcessed(ctx context.Context, rec models.ProcessedRecord) error {
	return s.run(ctx, func() error { return s.store.LogProcessed(ctx, rec) })
}

func (s *CircuitBreakerStore) PurgeDeliveredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.count(ctx, func() (int64, error) { return s.store.PurgeDeliveredBefore(ctx, cutoff) })
}

func (s *CircuitBreakerStore) PurgeProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.count(ctx, func() (int64, error) { return s.store.PurgeProcessedBefore(ctx, cutoff) })
}

func (s *CircuitBreakerStore) check(ctx context.Context, fn func() (bool, error)) (bool, error) {
	res, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) { return fn() })
	if err != nil {
		return false, s.wrap(err)
	}
	return res.(bool), nil
}

func (s *CircuitBreakerStore) count(ctx context.Context, fn func() (int64, error)) (int64, error) {
	res, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) { return fn() })
	if err != nil {
		return 0, s.wrap(err)
	}
	return res.(int64), nil
}

func (s *CircuitBreakerStore) run(ctx context.Context, fn func() error) error {
	return s.wrap(s.cb.Run(ctx, fn))
}

func (s *CircuitBreakerStore) wrap(err error) error {
	if err != nil && circuitbreaker.IsBreakerError(err) {
		return fmt.Errorf("circuit breaker is open for ledger: %w", err)
	}
	return err
}
