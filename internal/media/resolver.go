// Package media finds dashcam clips for events that arrived without one and
// fetches clips the transport could not pull by URL.
package media

import (
	"context"
	"time"

	"safetyrelay/internal/config"
	"safetyrelay/internal/events"
	"safetyrelay/internal/logger"
	"safetyrelay/internal/window"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/models"
)

const defaultResolverWindow = 5 * time.Minute

// EventSource is the vehicle-scoped safety event query used for the
// secondary lookup.
type EventSource interface {
	FetchVehicleSafetyEvents(ctx context.Context, vehicleID string, w window.Window) ([]models.RawRecord, error)
}

type Resolver struct {
	source EventSource
	window time.Duration
	logger logger.Logger
}

func NewResolver(source EventSource, cfg config.MediaConfig, log logger.Logger) *Resolver {
	w := cfg.ResolverWindow()
	if w <= 0 {
		w = defaultResolverWindow
	}
	return &Resolver{source: source, window: w, logger: log}
}

// Resolve makes one query around the event time and returns the best clip of
// the matching upstream record. An empty string means no video; lookup
// failures are logged and never returned.
func (r *Resolver) Resolve(ctx context.Context, ev models.UnifiedEvent) string {
	if ev.AssetID == "" {
		metrics.MediaResolutionsTotal.WithLabelValues("skipped").Inc()
		return ""
	}

	records, err := r.source.FetchVehicleSafetyEvents(ctx, ev.AssetID, window.Around(ev.OccurredAt, r.window))
	if err != nil {
		metrics.MediaResolutionsTotal.WithLabelValues("error").Inc()
		r.logger.WarnwCtx(ctx, "Media lookup failed",
			"event_id", ev.ID,
			"asset_id", ev.AssetID,
			"error", err,
		)
		return ""
	}

	match, ok := bestMatch(ev, records)
	if !ok {
		metrics.MediaResolutionsTotal.WithLabelValues("no_match").Inc()
		return ""
	}

	url := events.ExtractVideoURL(match)
	if url == "" {
		metrics.MediaResolutionsTotal.WithLabelValues("no_video").Inc()
		return ""
	}

	metrics.MediaResolutionsTotal.WithLabelValues("found").Inc()
	r.logger.DebugwCtx(ctx, "Media resolved",
		"event_id", ev.ID,
		"video_url", MaskURL(url),
	)
	return url
}

// bestMatch returns the record with the same id. Only when upstream carries
// no ids at all does it fall back to the record closest in time.
func bestMatch(ev models.UnifiedEvent, records []models.RawRecord) (models.RawRecord, bool) {
	var (
		closest models.RawRecord
		bestGap time.Duration = -1
		keyed   bool
	)
	for _, raw := range records {
		candidate := events.NormalizeSafetyEvent(raw, ev.OccurredAt)
		if candidate.ID != "" {
			if candidate.ID == ev.ID {
				return raw, true
			}
			keyed = true
			continue
		}
		gap := candidate.OccurredAt.Sub(ev.OccurredAt)
		if gap < 0 {
			gap = -gap
		}
		if bestGap < 0 || gap < bestGap {
			closest, bestGap = raw, gap
		}
	}
	if keyed {
		return nil, false
	}
	return closest, bestGap >= 0
}
