package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetyrelay/internal/config"
	"safetyrelay/internal/delivery"
	"safetyrelay/internal/filtering"
	"safetyrelay/internal/intervals"
	"safetyrelay/internal/logger"
	"safetyrelay/internal/vehicles"
	"safetyrelay/internal/window"
	"safetyrelay/pkg/models"
)

type fakeSafety struct {
	records []models.RawRecord
	err     error
	gotWin  window.Window
}

func (f *fakeSafety) FetchSafetyEvents(_ context.Context, w window.Window, _ int) ([]models.RawRecord, error) {
	f.gotWin = w
	return f.records, f.err
}

type fakeIntervals struct {
	result intervals.Result
	gotIDs []string
	gotWin window.Window
}

func (f *fakeIntervals) FetchAll(_ context.Context, w window.Window, ids []string) intervals.Result {
	f.gotIDs, f.gotWin = ids, w
	return f.result
}

type fakeRoster struct {
	ids   []string
	names map[string]string
	err   error
}

func (f *fakeRoster) IDs(context.Context) ([]string, error) { return f.ids, f.err }
func (f *fakeRoster) NameFor(id string) string              { return f.names[id] }

type fakeDeliverer struct {
	mu       sync.Mutex
	seen     []string
	vehicles []string
	panicOn  string
}

func (f *fakeDeliverer) Deliver(_ context.Context, ev models.UnifiedEvent) delivery.Result {
	f.mu.Lock()
	f.seen = append(f.seen, ev.ID)
	f.vehicles = append(f.vehicles, ev.VehicleName)
	f.mu.Unlock()
	if ev.ID == f.panicOn {
		panic("boom")
	}
	return delivery.Result{Outcome: delivery.OutcomeDelivered, Mode: delivery.ModeText, Destination: models.Destination{ChatID: 5}}
}

type fakePublisher struct {
	notices []models.DeliveryNotice
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, n models.DeliveryNotice) error {
	f.notices = append(f.notices, n)
	return f.err
}

type fixture struct {
	pipeline  *Pipeline
	safety    *fakeSafety
	intervals *fakeIntervals
	roster    *fakeRoster
	deliverer *fakeDeliverer
	publisher *fakePublisher
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NopLogger()
	filter, err := filtering.NewService(config.FilteringConfig{}, log)
	require.NoError(t, err)

	f := &fixture{
		safety:    &fakeSafety{},
		intervals: &fakeIntervals{},
		roster:    &fakeRoster{ids: []string{"V1"}, names: map[string]string{"V1": "Truck 1"}},
		deliverer: &fakeDeliverer{},
		publisher: &fakePublisher{},
		now:       time.Date(2025, 1, 1, 10, 5, 0, 0, time.UTC),
	}
	cfg := &config.Config{
		Telemetry: config.TelemetryConfig{SafetyLookbackMinutes: 60, SafetyLimit: 100},
		Window:    config.WindowConfig{WindowHours: 1, BufferMinutes: 5},
		Speeding:  config.SpeedingConfig{OverThresholdMph: 15},
	}
	f.pipeline = New(Deps{
		Safety:    f.safety,
		Intervals: f.intervals,
		Roster:    f.roster,
		Filter:    filter,
		Deliverer: f.deliverer,
		Publisher: f.publisher,
	}, cfg, log)
	f.pipeline.now = func() time.Time { return f.now }
	return f
}

func TestRunTick_MergesFiltersAndDelivers(t *testing.T) {
	f := newFixture(t)
	f.safety.records = []models.RawRecord{
		{"id": "s1", "time": "2025-01-01T10:02:00Z", "type": "Harsh Brake", "vehicle": map[string]interface{}{"id": "V1"}},
		{"id": "s2", "time": "2025-01-01T10:01:00Z", "type": "Following Distance"},
		{"id": "s1", "time": "2025-01-01T10:02:00Z", "type": "Harsh Brake"},
	}
	f.intervals.result = intervals.Result{Chunks: 1, Intervals: []models.SpeedingInterval{
		{AssetID: "V1", StartTime: "2025-01-01T10:00:00Z", EndTime: "2025-01-01T10:01:21Z", MaxSpeedMph: 80, SpeedLimitMph: 55},
		{AssetID: "V1", StartTime: "2025-01-01T09:30:00Z", EndTime: "2025-01-01T09:31:00Z", MaxSpeedMph: 60, SpeedLimitMph: 55},
	}}

	report := f.pipeline.RunTick(context.Background())

	speedingID := "speeding:V1:2025-01-01T10:00:00Z:2025-01-01T10:01:21Z"
	assert.Equal(t, []string{speedingID, "s1"}, f.deliverer.seen)
	assert.Equal(t, 3, report.SafetyFetched)
	assert.Equal(t, 2, report.IntervalsRead)
	assert.Equal(t, 1, report.IntervalsGated)
	assert.Equal(t, 3, report.Merged)
	assert.Equal(t, 2, report.Relevant)
	assert.Equal(t, 2, report.Count(delivery.OutcomeDelivered))
	assert.NotEmpty(t, report.TickID)

	assert.Equal(t, []string{"V1"}, f.intervals.gotIDs)
	assert.Equal(t, window.Sliding(f.now, 1, 5), f.intervals.gotWin)
	assert.Equal(t, window.Lookback(f.now, time.Hour), f.safety.gotWin)

	require.Len(t, f.publisher.notices, 2)
	assert.Equal(t, speedingID, f.publisher.notices[0].EventID)
	assert.Equal(t, "Truck 1", f.publisher.notices[0].VehicleName)
	assert.Equal(t, int64(5), f.publisher.notices[1].ChatID)
}

func TestRunTick_SafetyFailureDoesNotBlockIntervals(t *testing.T) {
	f := newFixture(t)
	f.safety.err = errors.New("503")
	f.intervals.result = intervals.Result{Intervals: []models.SpeedingInterval{
		{AssetID: "V1", StartTime: "2025-01-01T10:00:00Z", EndTime: "2025-01-01T10:01:00Z", MaxSpeedMph: 90, SpeedLimitMph: 60},
	}}

	report := f.pipeline.RunTick(context.Background())

	assert.Error(t, report.SafetyFetchErr)
	assert.Equal(t, 1, report.Count(delivery.OutcomeDelivered))
}

func TestRunTick_RosterFailureSkipsIntervals(t *testing.T) {
	f := newFixture(t)
	f.roster.err = errors.New("vehicles down")
	f.safety.records = []models.RawRecord{{"id": "s1", "type": "Rolling Stop"}}

	report := f.pipeline.RunTick(context.Background())

	assert.Error(t, report.RosterErr)
	assert.Nil(t, f.intervals.gotIDs)
	assert.Equal(t, []string{"s1"}, f.deliverer.seen)
}

func TestRunTick_PanickingEventIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.deliverer.panicOn = "s1"
	f.safety.records = []models.RawRecord{
		{"id": "s1", "time": "2025-01-01T10:00:00Z", "type": "Harsh Brake"},
		{"id": "s2", "time": "2025-01-01T10:01:00Z", "type": "Rolling Stop"},
	}

	report := f.pipeline.RunTick(context.Background())

	assert.Equal(t, []string{"s1", "s2"}, f.deliverer.seen)
	assert.Equal(t, 1, report.EventPanics)
	assert.Equal(t, 1, report.Count(delivery.OutcomeFailed))
	assert.Equal(t, 1, report.Count(delivery.OutcomeDelivered))
}

func TestRunTick_PublishFailureIsLoggedOnly(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	f.safety.records = []models.RawRecord{{"id": "s1", "type": "Harsh Brake"}}

	report := f.pipeline.RunTick(context.Background())

	assert.Equal(t, 1, report.Count(delivery.OutcomeDelivered))
	assert.Len(t, f.publisher.notices, 1)
}

type vehicleSource []models.Vehicle

func (s vehicleSource) FetchVehicles(context.Context) ([]models.Vehicle, error) {
	return s, nil
}

func TestRunTick_FirstTickNamesSafetyEventsFromRoster(t *testing.T) {
	f := newFixture(t)
	directory := vehicles.NewDirectory(vehicleSource{{ID: "V1", Name: "Truck 1"}}, config.VehiclesConfig{}, logger.NopLogger())
	f.pipeline.deps.Roster = directory
	f.safety.records = []models.RawRecord{
		{"id": "s1", "time": "2025-01-01T10:02:00Z", "type": "Harsh Brake", "vehicle": map[string]interface{}{"id": "V1"}},
	}

	f.pipeline.RunTick(context.Background())

	assert.Equal(t, []string{"Truck 1"}, f.deliverer.vehicles)
	assert.Equal(t, []string{"V1"}, f.intervals.gotIDs)
}

func TestRunTick_CountsEventsWithoutID(t *testing.T) {
	f := newFixture(t)
	f.safety.records = []models.RawRecord{
		{"type": "Harsh Brake"},
		{"id": "s1", "type": "Harsh Brake"},
	}

	report := f.pipeline.RunTick(context.Background())

	assert.Equal(t, 1, report.Unkeyed)
	assert.Equal(t, 1, report.Merged)
	assert.Equal(t, []string{"s1"}, f.deliverer.seen)
}
