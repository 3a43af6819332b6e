// Package pipeline runs one relay tick end to end and schedules ticks.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/delivery"
	"safetyrelay/internal/events"
	"safetyrelay/internal/intervals"
	"safetyrelay/internal/logger"
	"safetyrelay/internal/window"
	apperrors "safetyrelay/pkg/errors"
	"safetyrelay/pkg/logging"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/models"
	"safetyrelay/pkg/tracing"
)

type SafetySource interface {
	FetchSafetyEvents(ctx context.Context, w window.Window, limit int) ([]models.RawRecord, error)
}

type IntervalSource interface {
	FetchAll(ctx context.Context, w window.Window, assetIDs []string) intervals.Result
}

type Roster interface {
	IDs(ctx context.Context) ([]string, error)
	NameFor(assetID string) string
}

type Filter interface {
	Filter(ctx context.Context, evs []models.UnifiedEvent) []models.UnifiedEvent
}

type Deliverer interface {
	Deliver(ctx context.Context, ev models.UnifiedEvent) delivery.Result
}

type Publisher interface {
	Publish(ctx context.Context, notice models.DeliveryNotice) error
}

type Deps struct {
	Safety    SafetySource
	Intervals IntervalSource
	Roster    Roster
	Filter    Filter
	Deliverer Deliverer
	Publisher Publisher
}

// Report summarizes one tick.
type Report struct {
	TickID         string
	SafetyFetched  int
	IntervalsRead  int
	IntervalsGated int
	FailedChunks   int
	Merged         int
	Unkeyed        int
	Relevant       int
	Outcomes       map[delivery.Outcome]int
	EventPanics    int
	SafetyFetchErr error
	RosterErr      error
	Duration       time.Duration
}

func (r Report) Count(o delivery.Outcome) int {
	return r.Outcomes[o]
}

type Pipeline struct {
	deps      Deps
	telemetry config.TelemetryConfig
	window    config.WindowConfig
	threshold float64
	logger    logger.Logger
	now       func() time.Time
}

func New(deps Deps, cfg *config.Config, log logger.Logger) *Pipeline {
	return &Pipeline{
		deps:      deps,
		telemetry: cfg.Telemetry,
		window:    cfg.Window,
		threshold: cfg.Speeding.OverThresholdMph,
		logger:    log,
		now:       time.Now,
	}
}

// RunTick fetches both feeds, merges and filters them, then delivers each
// surviving event. A failure in one feed or one event never stops the rest.
func (p *Pipeline) RunTick(ctx context.Context) Report {
	report := Report{TickID: uuid.NewString(), Outcomes: map[delivery.Outcome]int{}}
	ctx = logging.WithTickID(ctx, report.TickID)
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "pipeline.tick")
	defer span.End()

	start := time.Now()
	now := p.now()

	// the roster also names safety events, so it is loaded before either feed
	ids, err := p.deps.Roster.IDs(ctx)
	if err != nil {
		report.RosterErr = err
		metrics.FetchErrorsTotal.WithLabelValues("vehicles").Inc()
		p.logger.WarnwCtx(ctx, "Vehicle roster unavailable, skipping intervals", "error", err)
	}

	safety := p.fetchSafety(ctx, now, &report)
	speeding := p.fetchSpeeding(ctx, now, ids, &report)

	merged, unkeyed := events.Merge(safety, speeding)
	report.Merged = len(merged)
	report.Unkeyed = unkeyed
	if unkeyed > 0 {
		p.logger.WarnwCtx(ctx, "Dropped events without an id", "count", unkeyed)
	}

	relevant := p.deps.Filter.Filter(ctx, merged)
	report.Relevant = len(relevant)

	for _, ev := range relevant {
		if ctx.Err() != nil {
			break
		}
		var res delivery.Result
		err := apperrors.Guard(func() error {
			res = p.deps.Deliverer.Deliver(ctx, ev)
			return nil
		})
		if err != nil {
			report.EventPanics++
			report.Outcomes[delivery.OutcomeFailed]++
			p.logger.ErrorwCtx(ctx, "Event delivery panicked",
				"event_id", ev.ID,
				"error", err,
			)
			continue
		}
		report.Outcomes[res.Outcome]++
		if res.Outcome == delivery.OutcomeDelivered {
			p.publish(ctx, ev, res)
		}
	}

	report.Duration = time.Since(start)
	span.SetAttributes(
		attribute.String("tick.id", report.TickID),
		attribute.Int("tick.relevant", report.Relevant),
		attribute.Int("tick.delivered", report.Count(delivery.OutcomeDelivered)),
	)
	p.logReport(ctx, report)
	return report
}

func (p *Pipeline) fetchSafety(ctx context.Context, now time.Time, report *Report) []models.UnifiedEvent {
	w := window.Lookback(now, p.telemetry.SafetyLookback())
	raws, err := p.deps.Safety.FetchSafetyEvents(ctx, w, p.telemetry.SafetyLimit)
	if err != nil {
		report.SafetyFetchErr = err
		metrics.FetchErrorsTotal.WithLabelValues("safety").Inc()
		p.logger.WarnwCtx(ctx, "Safety event fetch failed, continuing with intervals",
			"window", w.String(),
			"error", err,
		)
		return nil
	}

	out := make([]models.UnifiedEvent, 0, len(raws))
	for _, raw := range raws {
		ev := events.NormalizeSafetyEvent(raw, now)
		p.fillVehicle(&ev)
		out = append(out, ev)
	}
	report.SafetyFetched = len(out)
	metrics.EventsFetchedTotal.WithLabelValues(string(models.SourceSafety)).Add(float64(len(out)))
	return out
}

func (p *Pipeline) fetchSpeeding(ctx context.Context, now time.Time, ids []string, report *Report) []models.UnifiedEvent {
	if len(ids) == 0 {
		return nil
	}

	w := window.Sliding(now, p.window.WindowHours, p.window.BufferMinutes)
	res := p.deps.Intervals.FetchAll(ctx, w, ids)
	gated := intervals.OverThreshold(res.Intervals, p.threshold)

	report.IntervalsRead = len(res.Intervals)
	report.IntervalsGated = len(gated)
	report.FailedChunks = res.FailedChunks

	out := make([]models.UnifiedEvent, 0, len(gated))
	for _, rec := range gated {
		ev := events.NormalizeSpeedingInterval(rec, now)
		p.fillVehicle(&ev)
		out = append(out, ev)
	}
	return out
}

func (p *Pipeline) fillVehicle(ev *models.UnifiedEvent) {
	if ev.VehicleName == "" && ev.AssetID != "" {
		ev.VehicleName = p.deps.Roster.NameFor(ev.AssetID)
	}
}

func (p *Pipeline) publish(ctx context.Context, ev models.UnifiedEvent, res delivery.Result) {
	if p.deps.Publisher == nil {
		return
	}
	notice := models.DeliveryNotice{
		ID:          uuid.NewString(),
		EventID:     ev.ID,
		Source:      ev.Source,
		Type:        ev.Type,
		VehicleName: ev.VehicleName,
		ChatID:      res.Destination.ChatID,
		Mode:        string(res.Mode),
		SentAt:      res.SentAt,
		TraceID:     tracing.TraceID(ctx),
	}
	if err := p.deps.Publisher.Publish(ctx, notice); err != nil {
		p.logger.WarnwCtx(ctx, "Failed to publish delivery notice",
			"event_id", ev.ID,
			"error", err,
		)
	}
}

func (p *Pipeline) logReport(ctx context.Context, r Report) {
	p.logger.InfowCtx(ctx, "Tick finished",
		"safety_fetched", r.SafetyFetched,
		"intervals_read", r.IntervalsRead,
		"intervals_gated", r.IntervalsGated,
		"failed_chunks", r.FailedChunks,
		"merged", r.Merged,
		"unkeyed", r.Unkeyed,
		"relevant", r.Relevant,
		"delivered", r.Count(delivery.OutcomeDelivered),
		"deferred", r.Count(delivery.OutcomeDeferred),
		"duplicate", r.Count(delivery.OutcomeDuplicate),
		"failed", r.Count(delivery.OutcomeFailed),
		"no_route", r.Count(delivery.OutcomeNoRoute),
		"duration_ms", r.Duration.Milliseconds(),
	)
}
