package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetyrelay/pkg/models"
)

func rawFromJSON(t *testing.T, body string) models.RawRecord {
	t.Helper()
	var rec models.RawRecord
	require.NoError(t, json.Unmarshal([]byte(body), &rec))
	return rec
}

func TestNormalizeSpeedingInterval_Scenario(t *testing.T) {
	rec := models.SpeedingInterval{
		AssetID:       "V1",
		StartTime:     "2025-01-01T10:00:00Z",
		EndTime:       "2025-01-01T10:01:21Z",
		MaxSpeedMph:   80.1,
		SpeedLimitMph: 55.3,
	}

	ev := NormalizeSpeedingInterval(rec, time.Now())

	assert.Equal(t, "speeding:V1:2025-01-01T10:00:00Z:2025-01-01T10:01:21Z", ev.ID)
	assert.Equal(t, models.TypeSevereSpeeding, ev.Type)
	assert.Equal(t, models.SourceSpeedingInterval, ev.Source)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC), ev.OccurredAt)
	require.NotNil(t, ev.EndedAt)
	assert.Equal(t, time.Date(2025, 1, 1, 10, 1, 21, 0, time.UTC), *ev.EndedAt)
	assert.Equal(t, 80.1, ev.Details["max_speed_mph"])
	assert.Equal(t, 55.3, ev.Details["speed_limit_mph"])
	assert.Empty(t, ev.VideoURL)
}

func TestNormalizeSpeedingInterval_IdempotentIdentity(t *testing.T) {
	a := models.SpeedingInterval{AssetID: "V1", StartTime: "2025-01-01T10:00:00Z", EndTime: "2025-01-01T10:01:21Z"}
	b := models.SpeedingInterval{AssetID: "V1", StartTime: "2025-01-01T11:00:00+01:00", EndTime: "2025-01-01T10:01:21.000Z"}

	first := NormalizeSpeedingInterval(a, time.Now())
	second := NormalizeSpeedingInterval(a, time.Now().Add(time.Hour))
	third := NormalizeSpeedingInterval(b, time.Now())

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ID, third.ID)
}

func TestNormalizeSpeedingInterval_UnparseableTimes(t *testing.T) {
	fetched := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	ev := NormalizeSpeedingInterval(models.SpeedingInterval{AssetID: "V2", StartTime: " bogus ", EndTime: ""}, fetched)

	assert.Equal(t, "speeding:V2:bogus:", ev.ID)
	assert.Equal(t, fetched, ev.OccurredAt)
	assert.True(t, ev.TimeSubstituted)
	assert.Nil(t, ev.EndedAt)
}

func TestNormalizeSpeedingInterval_SubSecondBoundsStayDistinct(t *testing.T) {
	a := models.SpeedingInterval{AssetID: "V1", StartTime: "2025-01-01T10:00:00.250Z", EndTime: "2025-01-01T10:01:21.500Z"}
	b := models.SpeedingInterval{AssetID: "V1", StartTime: "2025-01-01T10:00:00.750Z", EndTime: "2025-01-01T10:01:21.900Z"}

	first := NormalizeSpeedingInterval(a, time.Now())
	second := NormalizeSpeedingInterval(b, time.Now())

	assert.Equal(t, "speeding:V1:2025-01-01T10:00:00.25Z:2025-01-01T10:01:21.5Z", first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.TimeSubstituted)
	merged, _ := Merge(nil, []models.UnifiedEvent{first, second})
	assert.Len(t, merged, 2)
}

func TestNormalizeSafetyEvent_MissingTimeIsFlagged(t *testing.T) {
	fetched := time.Date(2025, 3, 4, 6, 0, 0, 0, time.UTC)
	ev := NormalizeSafetyEvent(rawFromJSON(t, `{"id":"evt-x","type":"Harsh Brake"}`), fetched)

	assert.Equal(t, fetched, ev.OccurredAt)
	assert.True(t, ev.TimeSubstituted)

	timed := NormalizeSafetyEvent(rawFromJSON(t, `{"id":"evt-y","type":"Harsh Brake","time":"2025-03-04T05:06:07Z"}`), fetched)
	assert.False(t, timed.TimeSubstituted)
}

func TestNormalizeSafetyEvent_LabelsAndVideoPriority(t *testing.T) {
	raw := rawFromJSON(t, `{
		"id": "evt-1",
		"time": "2025-03-04T05:06:07Z",
		"vehicle": {"id": "281474", "name": "Truck 12"},
		"driver": {"id": "d-9", "name": "Sam"},
		"behaviorLabels": [{"label": "Harsh Brake", "source": "automated"}],
		"type": "ignored",
		"videoUrl": "https://cdn/generic.mp4",
		"inwardVideoUrl": "https://cdn/inward.mp4",
		"forwardVideoUrl": "https://cdn/forward.mp4"
	}`)

	ev := NormalizeSafetyEvent(raw, time.Now())

	assert.Equal(t, "evt-1", ev.ID)
	assert.Equal(t, models.SourceSafety, ev.Source)
	assert.Equal(t, "harsh_brake", ev.Type)
	assert.Equal(t, "Harsh Brake", ev.RawLabel)
	assert.Equal(t, "281474", ev.AssetID)
	assert.Equal(t, "Truck 12", ev.VehicleName)
	assert.Equal(t, "d-9", ev.DriverID)
	assert.Equal(t, "https://cdn/forward.mp4", ev.VideoURL)
	assert.Equal(t, time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC), ev.OccurredAt)
}

func TestNormalizeSafetyEvent_TypeFallbackAndMissingTime(t *testing.T) {
	fetched := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	raw := rawFromJSON(t, `{"eventId": "e2", "category": "Rolling Stop", "rearVideoUrl": "https://cdn/rear.mp4", "videoUrl": "https://cdn/any.mp4"}`)

	ev := NormalizeSafetyEvent(raw, fetched)

	assert.Equal(t, "e2", ev.ID)
	assert.Equal(t, "rolling_stop", ev.Type)
	assert.Equal(t, fetched, ev.OccurredAt)
	assert.Equal(t, "https://cdn/rear.mp4", ev.VideoURL)
}

func TestExtractVideoURL(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"none", `{}`, ""},
		{"generic only", `{"mediaUrl": "g"}`, "g"},
		{"inward beats rear", `{"rearVideoUrl": "r", "inwardVideoUrl": "i"}`, "i"},
		{"media list forward", `{"media": [{"input": "dashcamRearFacing", "url": "r"}, {"input": "dashcamForwardFacing", "url": "f"}]}`, "f"},
		{"media list inward before generic field", `{"videoUrl": "g", "media": [{"input": "dashcamDriverFacing", "url": "i"}]}`, "i"},
		{"blank forward ignored", `{"forwardVideoUrl": "  ", "videoUrl": "g"}`, "g"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVideoURL(rawFromJSON(t, tt.body)))
		})
	}
}

func TestParseTime(t *testing.T) {
	want := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	for _, in := range []string{"2025-01-01T10:00:00Z", "2025-01-01T12:00:00+02:00", "1735725600", "1735725600000", "2025-01-01 10:00:00"} {
		got, err := ParseTime(in)
		require.NoError(t, err, in)
		assert.True(t, want.Equal(got), in)
	}

	_, err := ParseTime("yesterday")
	assert.Error(t, err)
}
