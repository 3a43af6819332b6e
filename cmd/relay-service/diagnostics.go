package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"safetyrelay/internal/config"
	"safetyrelay/internal/events"
	"safetyrelay/internal/intervals"
	"safetyrelay/internal/logger"
	"safetyrelay/internal/telemetry"
	"safetyrelay/internal/window"
	"safetyrelay/pkg/circuitbreaker"
	apperrors "safetyrelay/pkg/errors"
	"safetyrelay/pkg/models"
)

type attemptView struct {
	Window  string `json:"window"`
	DeltaH  int    `json:"delta_hours"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

type searchView struct {
	Vehicle   string                    `json:"vehicle"`
	Found     bool                      `json:"found"`
	Window    string                    `json:"window,omitempty"`
	Attempts  []attemptView             `json:"attempts"`
	Intervals []models.SpeedingInterval `json:"intervals"`
}

func newIntervalFetcher(cfg *config.Config, log logger.Logger) *intervals.Fetcher {
	var api telemetry.API = telemetry.NewClient(cfg.Telemetry, log)
	if cfg.CircuitBreaker.Enabled {
		api = telemetry.WithCircuitBreaker(api, circuitbreaker.FromSettings("telemetry", cfg.CircuitBreaker))
	}
	return intervals.NewFetcher(api, cfg.Telemetry, log)
}

// parseSearch builds a diagnostics request. Missing bounds default to the
// sliding window the scheduled pass would use.
func parseSearch(vehicle, from, to string, all bool, cfg *config.Config, now time.Time) (intervals.SearchRequest, error) {
	if vehicle == "" {
		return intervals.SearchRequest{}, apperrors.ErrValidation.WithDetail("field", "vehicle")
	}

	base := window.Sliding(now, cfg.Window.WindowHours, cfg.Window.BufferMinutes)
	if from != "" {
		t, err := events.ParseTime(from)
		if err != nil {
			return intervals.SearchRequest{}, apperrors.ErrValidation.WithDetail("field", "from").WithCause(err)
		}
		base.Start = t
	}
	if to != "" {
		t, err := events.ParseTime(to)
		if err != nil {
			return intervals.SearchRequest{}, apperrors.ErrValidation.WithDetail("field", "to").WithCause(err)
		}
		base.End = t
	}
	if !base.End.After(base.Start) {
		return intervals.SearchRequest{}, apperrors.ErrValidation.WithDetail("field", "to").WithCause(fmt.Errorf("window end %s is not after start %s", base.End, base.Start))
	}

	req := intervals.SearchRequest{
		AssetIDs: []string{vehicle},
		Base:     base,
		Deltas:   window.Hours(cfg.Window.ExpansionHours),
	}
	if !all {
		req.SeverityTag = cfg.Speeding.SeverityTag
	}
	return req, nil
}

func searchResponse(vehicle string, res window.SearchResult[models.SpeedingInterval]) searchView {
	view := searchView{
		Vehicle:   vehicle,
		Found:     res.Found(),
		Attempts:  make([]attemptView, 0, len(res.Attempts)),
		Intervals: res.Records,
	}
	if view.Intervals == nil {
		view.Intervals = []models.SpeedingInterval{}
	}
	if res.Found() {
		view.Window = res.Window.String()
	}
	for _, a := range res.Attempts {
		av := attemptView{Window: a.Window.String(), DeltaH: int(a.Delta / time.Hour), Records: a.Records}
		if a.Err != nil {
			av.Error = a.Err.Error()
		}
		view.Attempts = append(view.Attempts, av)
	}
	return view
}

// debugIntervalsHandler serves GET /debug/intervals?vehicle=&from=&to=&all=.
func debugIntervalsHandler(cfg *config.Config, fetcher *intervals.Fetcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, _ := strconv.ParseBool(c.Query("all"))
		vehicle := c.Query("vehicle")
		req, err := parseSearch(vehicle, c.Query("from"), c.Query("to"), all, cfg, time.Now())
		if err != nil {
			c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
			return
		}
		c.JSON(http.StatusOK, searchResponse(vehicle, fetcher.Search(c.Request.Context(), req)))
	}
}
