// Package intervals reads the speeding-interval feed for a fleet.
package intervals

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/events"
	"safetyrelay/internal/logger"
	"safetyrelay/internal/telemetry"
	"safetyrelay/internal/window"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/models"
	"safetyrelay/pkg/tracing"
)

// Fetcher splits the roster into chunks, pages through each chunk and
// flattens the results. A failing chunk is logged and skipped.
type Fetcher struct {
	api         telemetry.API
	chunkSize   int
	maxPages    int
	concurrency int
	logger      logger.Logger
}

func NewFetcher(api telemetry.API, cfg config.TelemetryConfig, log logger.Logger) *Fetcher {
	f := &Fetcher{
		api:         api,
		chunkSize:   cfg.ChunkSize,
		maxPages:    cfg.MaxPages,
		concurrency: cfg.ChunkConcurrency,
		logger:      log,
	}
	if f.chunkSize <= 0 {
		f.chunkSize = constants.DefaultChunkSize
	}
	if f.maxPages <= 0 {
		f.maxPages = constants.DefaultMaxPages
	}
	if f.concurrency <= 0 {
		f.concurrency = constants.DefaultChunkConcurrency
	}
	return f
}

// Result carries the flattened intervals plus the number of chunks that
// failed, so callers can tell "nothing happened" from "nothing fetched".
type Result struct {
	Intervals    []models.SpeedingInterval
	Chunks       int
	FailedChunks int
	Malformed    int
}

// FetchAll returns every interval for assetIDs in w, unfiltered.
func (f *Fetcher) FetchAll(ctx context.Context, w window.Window, assetIDs []string) Result {
	ctx, span := tracing.GetTracer(constants.ServiceName).Start(ctx, "intervals.fetch")
	defer span.End()

	chunks := Chunk(assetIDs, f.chunkSize)
	results := make([]chunkResult, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			results[i] = f.fetchChunk(gctx, w, i, chunk)
			// never fail the group: one chunk must not cancel its siblings
			return nil
		})
	}
	_ = g.Wait()

	out := Result{Chunks: len(chunks)}
	for _, r := range results {
		if r.err != nil {
			out.FailedChunks++
		}
		out.Intervals = append(out.Intervals, r.intervals...)
		out.Malformed += r.malformed
	}

	span.SetAttributes(
		attribute.Int("chunks", out.Chunks),
		attribute.Int("failed_chunks", out.FailedChunks),
		attribute.Int("intervals", len(out.Intervals)),
	)
	metrics.EventsFetchedTotal.WithLabelValues(string(models.SourceSpeedingInterval)).Add(float64(len(out.Intervals)))
	return out
}

// FetchBySeverity keeps only intervals whose upstream severity tag equals
// tag, ignoring case. Used by diagnostics.
func (f *Fetcher) FetchBySeverity(ctx context.Context, w window.Window, assetIDs []string, tag string) Result {
	res := f.FetchAll(ctx, w, assetIDs)
	res.Intervals = BySeverity(res.Intervals, tag)
	return res
}

func BySeverity(in []models.SpeedingInterval, tag string) []models.SpeedingInterval {
	out := make([]models.SpeedingInterval, 0, len(in))
	for _, rec := range in {
		if strings.EqualFold(strings.TrimSpace(rec.SeverityLevel), strings.TrimSpace(tag)) {
			out = append(out, rec)
		}
	}
	return out
}

// ExceedsThreshold is the production severity gate: peak speed at least
// thresholdMph over the posted limit. Upstream severity is not consulted.
func ExceedsThreshold(rec models.SpeedingInterval, thresholdMph float64) bool {
	if rec.SpeedLimitMph <= 0 || rec.MaxSpeedMph <= 0 {
		return false
	}
	return rec.OverLimitMph() >= thresholdMph
}

func OverThreshold(in []models.SpeedingInterval, thresholdMph float64) []models.SpeedingInterval {
	out := make([]models.SpeedingInterval, 0, len(in))
	for _, rec := range in {
		if ExceedsThreshold(rec, thresholdMph) {
			out = append(out, rec)
		}
	}
	return out
}

type chunkResult struct {
	intervals []models.SpeedingInterval
	malformed int
	err       error
}

func (f *Fetcher) fetchChunk(ctx context.Context, w window.Window, index int, assetIDs []string) chunkResult {
	var res chunkResult
	cursor := ""
	seen := make(map[string]bool)

	for page := 0; page < f.maxPages; page++ {
		p, err := f.api.FetchIntervals(ctx, w, assetIDs, cursor)
		if err != nil {
			metrics.FetchErrorsTotal.WithLabelValues("intervals").Inc()
			f.logger.WarnwCtx(ctx, "Interval chunk failed",
				"chunk", index,
				"assets", len(assetIDs),
				"page", page,
				"error", err,
			)
			// pages already read stay valid
			res.err = err
			return res
		}

		for _, asset := range p.Assets {
			for _, raw := range asset.Intervals {
				rec, err := events.ParseInterval(asset.AssetID, raw)
				if err != nil {
					res.malformed++
					continue
				}
				res.intervals = append(res.intervals, rec)
			}
		}

		if p.NextCursor == "" || p.Len() == 0 {
			return res
		}
		if seen[p.NextCursor] {
			f.logger.WarnwCtx(ctx, "Interval cursor repeated, stopping", "chunk", index, "cursor", p.NextCursor)
			return res
		}
		seen[p.NextCursor] = true
		cursor = p.NextCursor
	}

	f.logger.WarnwCtx(ctx, "Interval page ceiling reached", "chunk", index, "max_pages", f.maxPages)
	return res
}

// Chunk splits ids into slices of at most size, dropping blanks and
// duplicates while keeping first-seen order.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = constants.DefaultChunkSize
	}

	seen := make(map[string]bool, len(ids))
	clean := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		clean = append(clean, id)
	}

	var chunks [][]string
	for start := 0; start < len(clean); start += size {
		end := start + size
		if end > len(clean) {
			end = len(clean)
		}
		chunks = append(chunks, clean[start:end])
	}
	return chunks
}
