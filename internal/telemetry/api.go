// Package telemetry is the HTTP binding for the fleet-telemetry provider.
package telemetry

import (
	"context"

	"safetyrelay/internal/window"
	"safetyrelay/pkg/models"
)

// API is the set of upstream reads the relay depends on. Every method may
// fail with a network or HTTP error; callers treat those as recoverable.
type API interface {
	FetchSafetyEvents(ctx context.Context, w window.Window, limit int) ([]models.RawRecord, error)
	FetchIntervals(ctx context.Context, w window.Window, assetIDs []string, cursor string) (IntervalPage, error)
	FetchVehicles(ctx context.Context) ([]models.Vehicle, error)
	FetchVehicleSafetyEvents(ctx context.Context, vehicleID string, w window.Window) ([]models.RawRecord, error)
}

// AssetIntervals is one "asset → intervals" entry of the interval feed.
type AssetIntervals struct {
	AssetID   string
	Intervals []models.RawRecord
}

// IntervalPage is one page of the interval feed. NextCursor is empty on the
// last page.
type IntervalPage struct {
	Assets     []AssetIntervals
	NextCursor string
}

// Len is the number of intervals on the page across all assets.
func (p IntervalPage) Len() int {
	n := 0
	for _, a := range p.Assets {
		n += len(a.Intervals)
	}
	return n
}
