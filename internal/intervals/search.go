package intervals

import (
	"context"
	"time"

	"safetyrelay/internal/window"
	apperrors "safetyrelay/pkg/errors"
	"safetyrelay/pkg/models"
)

// SearchRequest describes one read-only diagnostics lookup.
type SearchRequest struct {
	AssetIDs []string
	Base     window.Window
	Deltas   []time.Duration
	// SeverityTag limits matches to one upstream severity. Empty means all.
	SeverityTag string
}

// Search widens the window step by step until some interval turns up.
// A step where every chunk failed is recorded as an error attempt.
func (f *Fetcher) Search(ctx context.Context, req SearchRequest) window.SearchResult[models.SpeedingInterval] {
	return window.Expand(ctx, req.Base, req.Deltas, func(ctx context.Context, w window.Window) ([]models.SpeedingInterval, error) {
		var res Result
		if req.SeverityTag == "" {
			res = f.FetchAll(ctx, w, req.AssetIDs)
		} else {
			res = f.FetchBySeverity(ctx, w, req.AssetIDs, req.SeverityTag)
		}
		if res.Chunks > 0 && res.FailedChunks == res.Chunks {
			return nil, apperrors.ErrTransientUpstream.WithDetail("failed_chunks", res.FailedChunks)
		}
		return res.Intervals, nil
	})
}
