package telemetry

import (
	"context"
	"fmt"

	"safetyrelay/internal/window"
	"safetyrelay/pkg/circuitbreaker"
	apperrors "safetyrelay/pkg/errors"
	"safetyrelay/pkg/models"
)

// CircuitBreakerAPI stops hammering the provider once it is clearly down.
// Malformed responses do not count against the breaker.
type CircuitBreakerAPI struct {
	api API
	cb  *circuitbreaker.Wrapper
}

func WithCircuitBreaker(api API, cfg circuitbreaker.Config) *CircuitBreakerAPI {
	cfg.IsSuccessful = func(err error) bool {
		return err == nil || apperrors.IsMalformedUpstream(err)
	}
	return &CircuitBreakerAPI{api: api, cb: circuitbreaker.NewWrapper(cfg)}
}

func (a *CircuitBreakerAPI) FetchSafetyEvents(ctx context.Context, w window.Window, limit int) ([]models.RawRecord, error) {
	res, err := a.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return a.api.FetchSafetyEvents(ctx, w, limit)
	})
	if err != nil {
		return nil, a.wrap(err)
	}
	return res.([]models.RawRecord), nil
}

func (a *CircuitBreakerAPI) FetchIntervals(ctx context.Context, w window.Window, assetIDs []string, cursor string) (IntervalPage, error) {
	res, err := a.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return a.api.FetchIntervals(ctx, w, assetIDs, cursor)
	})
	if err != nil {
		return IntervalPage{}, a.wrap(err)
	}
	return res.(IntervalPage), nil
}

func (a *CircuitBreakerAPI) FetchVehicles(ctx context.Context) ([]models.Vehicle, error) {
	res, err := a.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return a.api.FetchVehicles(ctx)
	})
	if err != nil {
		return nil, a.wrap(err)
	}
	return res.([]models.Vehicle), nil
}

func (a *CircuitBreakerAPI) FetchVehicleSafetyEvents(ctx context.Context, vehicleID string, w window.Window) ([]models.RawRecord, error) {
	res, err := a.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return a.api.FetchVehicleSafetyEvents(ctx, vehicleID, w)
	})
	if err != nil {
		return nil, a.wrap(err)
	}
	return res.([]models.RawRecord), nil
}

func (a *CircuitBreakerAPI) wrap(err error) error {
	if circuitbreaker.IsBreakerError(err) {
		return apperrors.ErrTransientUpstream.WithCause(fmt.Errorf("circuit breaker %s: %w", a.cb.Name(), err))
	}
	return err
}
