// Package delivery decides, per event, whether and how to send it.
package delivery

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/logger"
	"safetyrelay/internal/media"
	"safetyrelay/internal/transport"
	"safetyrelay/pkg/logging"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/models"
	"safetyrelay/pkg/tracing"
)

type Outcome string

const (
	OutcomeDeferred  Outcome = "deferred"
	OutcomeDelivered Outcome = "delivered"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
	OutcomeNoRoute   Outcome = "no_route"
)

type Mode string

const (
	ModeNone        Mode = ""
	ModeVideoURL    Mode = "video_url"
	ModeVideoUpload Mode = "video_upload"
	ModeText        Mode = "text"
)

const (
	defaultReadyDelay = 3 * time.Minute
	defaultMaxWait    = 10 * time.Minute
)

// Result is the decision for one event. Err is set only for OutcomeFailed.
type Result struct {
	Outcome     Outcome
	Mode        Mode
	Destination models.Destination
	SentAt      time.Time
	Err         error
}

type Ledger interface {
	Seen(ctx context.Context, ev models.UnifiedEvent) bool
	Record(ctx context.Context, ev models.UnifiedEvent, outcome, mode string)
}

type Router interface {
	Resolve(ctx context.Context, vehicleName string) (models.Destination, bool)
}

type MediaResolver interface {
	Resolve(ctx context.Context, ev models.UnifiedEvent) string
}

type MediaFetcher interface {
	Fetch(ctx context.Context, url string) (*media.Download, error)
}

// Deps are the collaborators of an Orchestrator. Resolver, Downloader and
// Archiver are optional.
type Deps struct {
	Transport  transport.Transport
	Router     Router
	Ledger     Ledger
	Resolver   MediaResolver
	Downloader MediaFetcher
	Archiver   media.Archiver
	Formatter  *Formatter
}

type Orchestrator struct {
	deps          Deps
	readyDelay    time.Duration
	maxWait       time.Duration
	allowTextOnly bool
	dryRun        bool
	logger        logger.Logger
	now           func() time.Time
}

func NewOrchestrator(deps Deps, cfg config.MediaConfig, dryRun bool, log logger.Logger) *Orchestrator {
	readyDelay := cfg.ReadyDelay()
	if readyDelay <= 0 {
		readyDelay = defaultReadyDelay
	}
	maxWait := cfg.MaxWait()
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	if deps.Archiver == nil {
		deps.Archiver = media.NopArchiver()
	}
	if deps.Formatter == nil {
		deps.Formatter = NewFormatter("")
	}
	return &Orchestrator{
		deps:          deps,
		readyDelay:    readyDelay,
		maxWait:       maxWait,
		allowTextOnly: cfg.AllowTextWithoutVideo,
		dryRun:        dryRun,
		logger:        log,
		now:           time.Now,
	}
}

// Deliver runs one event through the gate and the delivery tiers. It never
// panics on transport or store failures; those surface as outcomes.
func (o *Orchestrator) Deliver(ctx context.Context, ev models.UnifiedEvent) Result {
	ctx = logging.WithEventID(ctx, ev.ID)
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "delivery.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("event.id", ev.ID),
		attribute.String("event.source", string(ev.Source)),
		attribute.String("event.type", ev.Type),
	)

	start := time.Now()
	res := o.decide(ctx, ev)

	span.SetAttributes(
		attribute.String("delivery.outcome", string(res.Outcome)),
		attribute.String("delivery.mode", string(res.Mode)),
	)
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}
	metrics.IncDeliveryOutcome(string(ev.Source), string(res.Outcome), string(res.Mode))
	metrics.ObserveDeliveryDuration(string(res.Outcome), time.Since(start))
	return res
}

func (o *Orchestrator) decide(ctx context.Context, ev models.UnifiedEvent) Result {
	if o.deps.Ledger.Seen(ctx, ev) {
		o.logger.DebugwCtx(ctx, "Event already delivered, skipping", "event_id", ev.ID)
		return Result{Outcome: OutcomeDuplicate}
	}

	if ev.IsSpeeding() {
		dest, ok := o.route(ctx, ev)
		if !ok {
			return Result{Outcome: OutcomeNoRoute}
		}
		return o.sendText(ctx, ev, dest, "")
	}

	age := ev.Age(o.now())
	if ev.TimeSubstituted {
		// no upstream time: the event would look fresh on every tick
		age = o.maxWait
	}
	if age < o.readyDelay {
		o.logger.DebugwCtx(ctx, "Event too fresh, deferring",
			"event_id", ev.ID,
			"age", age.Round(time.Second),
		)
		return Result{Outcome: OutcomeDeferred}
	}

	videoURL := ev.VideoURL
	if videoURL == "" && o.deps.Resolver != nil {
		videoURL = o.deps.Resolver.Resolve(ctx, ev)
	}

	if videoURL == "" && age < o.maxWait && !o.allowTextOnly {
		o.logger.DebugwCtx(ctx, "No video yet, deferring",
			"event_id", ev.ID,
			"age", age.Round(time.Second),
		)
		return Result{Outcome: OutcomeDeferred}
	}

	dest, ok := o.route(ctx, ev)
	if !ok {
		return Result{Outcome: OutcomeNoRoute}
	}

	if videoURL == "" {
		metrics.FallbackUsageTotal.WithLabelValues("delivery", string(ModeText), "no_video").Inc()
		return o.sendText(ctx, ev, dest, "Video not available.")
	}
	return o.sendVideo(ctx, ev, dest, videoURL)
}

func (o *Orchestrator) route(ctx context.Context, ev models.UnifiedEvent) (models.Destination, bool) {
	dest, ok := o.deps.Router.Resolve(ctx, ev.VehicleName)
	if !ok {
		o.logger.WarnwCtx(ctx, "No destination for event",
			"event_id", ev.ID,
			"vehicle_name", ev.VehicleName,
		)
	}
	return dest, ok
}

// sendVideo walks the tiers: link, then upload when the link itself was
// rejected, then text.
func (o *Orchestrator) sendVideo(ctx context.Context, ev models.UnifiedEvent, dest models.Destination, videoURL string) Result {
	caption := o.deps.Formatter.Caption(ev, dest)

	err := o.deps.Transport.SendVideo(ctx, dest.ChatID, transport.Video{URL: videoURL}, caption)
	o.logSend(ctx, ev, dest, ModeVideoURL, videoURL, err)
	if err == nil {
		return o.delivered(ctx, ev, dest, ModeVideoURL)
	}

	if !transport.IsFetchableContentError(err) || o.deps.Downloader == nil {
		metrics.FallbackUsageTotal.WithLabelValues("delivery", string(ModeText), "send_rejected").Inc()
		return o.sendText(ctx, ev, dest, "Video could not be attached.")
	}

	metrics.FallbackUsageTotal.WithLabelValues("delivery", string(ModeVideoUpload), "link_rejected").Inc()
	if res, ok := o.uploadVideo(ctx, ev, dest, videoURL, caption); ok {
		return res
	}

	metrics.FallbackUsageTotal.WithLabelValues("delivery", string(ModeText), "upload_failed").Inc()
	return o.sendText(ctx, ev, dest, "Video could not be attached.")
}

func (o *Orchestrator) uploadVideo(ctx context.Context, ev models.UnifiedEvent, dest models.Destination, videoURL, caption string) (Result, bool) {
	dl, err := o.deps.Downloader.Fetch(ctx, videoURL)
	if err != nil {
		o.logger.WarnwCtx(ctx, "Video download failed",
			"event_id", ev.ID,
			"video_url", media.MaskURL(videoURL),
			"error", err,
		)
		return Result{}, false
	}
	defer func() {
		if err := dl.Remove(); err != nil {
			o.logger.WarnwCtx(ctx, "Failed to remove temp video", "path", dl.Path, "error", err)
		}
	}()

	err = o.deps.Transport.SendVideo(ctx, dest.ChatID, transport.Video{Path: dl.Path}, caption)
	o.logSend(ctx, ev, dest, ModeVideoUpload, videoURL, err)
	if err != nil {
		return Result{}, false
	}

	if err := o.deps.Archiver.Archive(ctx, ev.ID, dl); err != nil {
		o.logger.WarnwCtx(ctx, "Failed to archive video", "event_id", ev.ID, "error", err)
	}
	return o.delivered(ctx, ev, dest, ModeVideoUpload), true
}

func (o *Orchestrator) sendText(ctx context.Context, ev models.UnifiedEvent, dest models.Destination, note string) Result {
	err := o.deps.Transport.SendText(ctx, dest.ChatID, o.deps.Formatter.Text(ev, dest, note))
	o.logSend(ctx, ev, dest, ModeText, "", err)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Mode: ModeText, Destination: dest, Err: err}
	}
	return o.delivered(ctx, ev, dest, ModeText)
}

func (o *Orchestrator) delivered(ctx context.Context, ev models.UnifiedEvent, dest models.Destination, mode Mode) Result {
	if !o.dryRun {
		o.deps.Ledger.Record(ctx, ev, string(OutcomeDelivered), string(mode))
	}
	return Result{Outcome: OutcomeDelivered, Mode: mode, Destination: dest, SentAt: o.now().UTC()}
}

func (o *Orchestrator) logSend(ctx context.Context, ev models.UnifiedEvent, dest models.Destination, mode Mode, videoURL string, err error) {
	fields := []interface{}{
		"event_id", ev.ID,
		"chat_id", dest.ChatID,
		"mode", mode,
		"video_url", media.MaskURL(videoURL),
	}
	if err != nil {
		o.logger.WarnwCtx(ctx, "Send failed", append(fields, "error", err)...)
		return
	}
	o.logger.InfowCtx(ctx, "Send succeeded", fields...)
}
