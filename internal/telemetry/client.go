package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/logger"
	"safetyrelay/internal/window"
	apperrors "safetyrelay/pkg/errors"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/models"
	"safetyrelay/pkg/tracing"
)

const (
	safetyEventsPath = "/fleet/safety-events"
	intervalsPath    = "/speeding-intervals/stream"
	vehiclesPath     = "/fleet/vehicles"

	maxPageSize = 512
)

type pagination struct {
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage"`
}

// next returns the cursor to follow, or "" when the feed is exhausted.
func (p pagination) next() string {
	if p.HasNextPage != nil && !*p.HasNextPage {
		return ""
	}
	return p.EndCursor
}

type envelope struct {
	Data       []models.RawRecord `json:"data"`
	Pagination pagination         `json:"pagination"`
}

type Client struct {
	baseURL  string
	token    string
	maxPages int
	http     *http.Client
	logger   logger.Logger
}

func NewClient(cfg config.TelemetryConfig, log logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = constants.DefaultMaxPages
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		token:    cfg.APIToken,
		maxPages: maxPages,
		http:     tracing.NewHTTPClient(&http.Client{Timeout: timeout}),
		logger:   log,
	}
}

func (c *Client) FetchSafetyEvents(ctx context.Context, w window.Window, limit int) ([]models.RawRecord, error) {
	q := windowQuery(w)
	return c.collect(ctx, "safety_events", safetyEventsPath, q, limit)
}

func (c *Client) FetchVehicleSafetyEvents(ctx context.Context, vehicleID string, w window.Window) ([]models.RawRecord, error) {
	q := windowQuery(w)
	q.Set("vehicleIds", vehicleID)
	return c.collect(ctx, "vehicle_safety_events", safetyEventsPath, q, 0)
}

func (c *Client) FetchVehicles(ctx context.Context) ([]models.Vehicle, error) {
	records, err := c.collect(ctx, "vehicles", vehiclesPath, url.Values{}, 0)
	if err != nil {
		return nil, err
	}

	vehicles := make([]models.Vehicle, 0, len(records))
	for _, r := range records {
		id := stringField(r, "id")
		if id == "" {
			continue
		}
		name := stringField(r, "name")
		if name == "" {
			name = id
		}
		vehicles = append(vehicles, models.Vehicle{ID: id, Name: name})
	}
	return vehicles, nil
}

// FetchIntervals returns one page. Pagination is driven by the caller so
// it can enforce its own page ceiling per chunk.
func (c *Client) FetchIntervals(ctx context.Context, w window.Window, assetIDs []string, cursor string) (IntervalPage, error) {
	q := windowQuery(w)
	q.Set("assetIds", strings.Join(assetIDs, ","))
	if cursor != "" {
		q.Set("after", cursor)
	}

	var env envelope
	if err := c.get(ctx, "intervals", intervalsPath, q, &env); err != nil {
		return IntervalPage{}, err
	}

	page := IntervalPage{NextCursor: env.Pagination.next()}
	for _, entry := range env.Data {
		assetID := stringField(entry, "assetId")
		if asset, ok := entry["asset"].(map[string]interface{}); ok && assetID == "" {
			assetID = stringField(asset, "id")
		}

		list, ok := entry["intervals"].([]interface{})
		if !ok {
			c.logger.WarnwCtx(ctx, "Interval entry without intervals list", "asset_id", assetID)
			continue
		}

		ai := AssetIntervals{AssetID: assetID, Intervals: make([]models.RawRecord, 0, len(list))}
		for _, item := range list {
			if m, ok := item.(map[string]interface{}); ok {
				ai.Intervals = append(ai.Intervals, models.RawRecord(m))
			}
		}
		page.Assets = append(page.Assets, ai)
	}
	return page, nil
}

// collect follows pagination until the cursor runs out, limit records are
// gathered (0 means no limit), or the page ceiling is reached.
func (c *Client) collect(ctx context.Context, endpoint, path string, q url.Values, limit int) ([]models.RawRecord, error) {
	pageSize := maxPageSize
	if limit > 0 && limit < pageSize {
		pageSize = limit
	}
	q.Set("limit", strconv.Itoa(pageSize))

	var out []models.RawRecord
	cursor := ""
	for page := 0; page < c.maxPages; page++ {
		if cursor != "" {
			q.Set("after", cursor)
		}

		var env envelope
		if err := c.get(ctx, endpoint, path, q, &env); err != nil {
			return nil, err
		}
		out = append(out, env.Data...)

		if limit > 0 && len(out) >= limit {
			return out[:limit], nil
		}
		cursor = env.Pagination.next()
		if cursor == "" || len(env.Data) == 0 {
			return out, nil
		}
	}

	c.logger.WarnwCtx(ctx, "Page ceiling reached", "endpoint", endpoint, "max_pages", c.maxPages)
	return out, nil
}

func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveTelemetryRequest(endpoint, 0, time.Since(start))
		return apperrors.ErrTransientUpstream.WithCause(err).WithDetail("endpoint", endpoint)
	}
	defer resp.Body.Close()
	metrics.ObserveTelemetryRequest(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.ErrTransientUpstream.
			WithCause(fmt.Errorf("telemetry returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))).
			WithDetail("endpoint", endpoint).
			WithDetail("status", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.ErrMalformedUpstream.WithCause(err).WithDetail("endpoint", endpoint)
	}
	return nil
}

func windowQuery(w window.Window) url.Values {
	q := url.Values{}
	q.Set("startTime", w.Start.UTC().Format(time.RFC3339))
	q.Set("endTime", w.End.UTC().Format(time.RFC3339))
	return q
}

func stringField(m map[string]interface{}, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}
