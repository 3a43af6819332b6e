package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ticks_total",
			Help: "Total number of driver loop ticks by result (count)",
		},
		[]string{"status"},
	)

	TickDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_tick_duration_ms",
			Help:    "Duration of one driver loop tick in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"status"},
	)

	EventsFetchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_fetched_total",
			Help: "Total number of upstream records normalized (count)",
		},
		[]string{"source"},
	)

	FetchErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_fetch_errors_total",
			Help: "Total number of failed upstream fetches (count)",
		},
		[]string{"feed"},
	)

	TelemetryRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_telemetry_request_duration_ms",
			Help:    "Duration of telemetry API requests in milliseconds",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"endpoint", "status"},
	)

	FilteringEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_filtering_events_total",
			Help: "Total number of events evaluated by the relevance filter (count)",
		},
		[]string{"source", "status"},
	)

	FilteringDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_filtering_duration_ms",
			Help:    "Duration of filtering one batch in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		},
	)

	FilteringRuleEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_filtering_rule_evaluations_total",
			Help: "Total number of operator rule evaluations (count)",
		},
		[]string{"rule_name", "result"},
	)

	DeliveryOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_outcomes_total",
			Help: "Total number of per-event delivery decisions (count)",
		},
		[]string{"source", "outcome", "mode"},
	)

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_delivery_duration_ms",
			Help:    "Duration of delivering one event in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"outcome"},
	)

	TransportRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_transport_requests_total",
			Help: "Total number of message transport calls (count)",
		},
		[]string{"method", "status"},
	)

	MediaDownloadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_media_download_bytes",
			Help:    "Size of videos downloaded for re-upload in bytes",
			Buckets: prometheus.ExponentialBuckets(256*1024, 2, 10),
		},
	)

	MediaResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_media_resolutions_total",
			Help: "Total number of secondary video lookups by result (count)",
		},
		[]string{"result"},
	)

	LedgerOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_ledger_operations_total",
			Help: "Total number of ledger and audit log operations (count)",
		},
		[]string{"store", "operation", "status"},
	)

	LedgerOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_ledger_operation_duration_ms",
			Help:    "Duration of ledger operations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"store", "operation"},
	)

	LedgerPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_ledger_purged_total",
			Help: "Total number of ledger rows removed by housekeeping (count)",
		},
	)

	VehicleRosterSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_vehicle_roster_size",
			Help: "Number of vehicles in the cached roster (count)",
		},
	)

	NoticesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_notices_published_total",
			Help: "Total number of delivery notices published to the broker (count)",
		},
		[]string{"broker", "status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"component"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)
)

func RegisterRelayMetrics() {
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(EventsFetchedTotal)
	prometheus.MustRegister(FetchErrorsTotal)
	prometheus.MustRegister(TelemetryRequestDuration)
	prometheus.MustRegister(FilteringEventsTotal)
	prometheus.MustRegister(FilteringDuration)
	prometheus.MustRegister(FilteringRuleEvaluationsTotal)
	prometheus.MustRegister(DeliveryOutcomesTotal)
	prometheus.MustRegister(DeliveryDuration)
	prometheus.MustRegister(TransportRequestsTotal)
	prometheus.MustRegister(MediaDownloadBytes)
	prometheus.MustRegister(MediaResolutionsTotal)
	prometheus.MustRegister(LedgerOperationsTotal)
	prometheus.MustRegister(LedgerOperationDuration)
	prometheus.MustRegister(LedgerPurgedTotal)
	prometheus.MustRegister(VehicleRosterSize)
	prometheus.MustRegister(NoticesPublishedTotal)
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterRateLimitMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func ObserveTickDuration(duration time.Duration, status string) {
	TickDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveTelemetryRequest(endpoint string, statusCode int, duration time.Duration) {
	TelemetryRequestDuration.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Observe(float64(duration.Milliseconds()))
}

func ObserveFilteringDuration(duration time.Duration) {
	FilteringDuration.Observe(float64(duration.Milliseconds()))
}

func IncFilteringRuleEvaluation(ruleName string, passed bool) {
	result := "passed"
	if !passed {
		result = "filtered"
	}
	FilteringRuleEvaluationsTotal.WithLabelValues(ruleName, result).Inc()
}

func IncDeliveryOutcome(source, outcome, mode string) {
	DeliveryOutcomesTotal.WithLabelValues(source, outcome, mode).Inc()
}

func ObserveDeliveryDuration(outcome string, duration time.Duration) {
	DeliveryDuration.WithLabelValues(outcome).Observe(float64(duration.Milliseconds()))
}

func IncTransportRequest(method string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	TransportRequestsTotal.WithLabelValues(method, status).Inc()
}

func IncLedgerOperation(store, operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	LedgerOperationsTotal.WithLabelValues(store, operation, status).Inc()
}

func ObserveLedgerOperation(store, operation string, duration time.Duration) {
	LedgerOperationDuration.WithLabelValues(store, operation).Observe(float64(duration.Milliseconds()))
}

func SetVehicleRosterSize(size int) {
	VehicleRosterSize.Set(float64(size))
}
