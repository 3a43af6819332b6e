package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "safetyrelay/pkg/errors"
)

func TestParseInterval_ConvertsKilometresPerHour(t *testing.T) {
	raw := rawFromJSON(t, `{
		"startTime": "2025-01-01T10:00:00Z",
		"endTime": "2025-01-01T10:01:21Z",
		"maxSpeedKilometersPerHour": 128.9,
		"postedSpeedLimitKilometersPerHour": 89,
		"severityLevel": "severe",
		"location": {"latitude": 37.1, "longitude": -122.2},
		"isDismissed": false
	}`)

	rec, err := ParseInterval("V1", raw)
	require.NoError(t, err)

	assert.Equal(t, "V1", rec.AssetID)
	assert.InDelta(t, 80.1, rec.MaxSpeedMph, 0.05)
	assert.InDelta(t, 55.3, rec.SpeedLimitMph, 0.05)
	assert.Equal(t, "severe", rec.SeverityLevel)
	assert.Equal(t, 37.1, rec.Location["latitude"])
	assert.Equal(t, false, rec.Extra["isDismissed"])
	assert.NotContains(t, rec.Extra, "startTime")
}

func TestParseInterval_MphPassThrough(t *testing.T) {
	raw := rawFromJSON(t, `{"startTime": "2025-01-01T10:00:00Z", "maxSpeedMph": 80.1, "speedLimitMph": 55.3}`)

	rec, err := ParseInterval("V1", raw)
	require.NoError(t, err)
	assert.Equal(t, 80.1, rec.MaxSpeedMph)
	assert.Equal(t, 55.3, rec.SpeedLimitMph)
	assert.InDelta(t, 24.8, rec.OverLimitMph(), 0.001)
}

func TestParseInterval_AssetFromRecord(t *testing.T) {
	raw := rawFromJSON(t, `{"asset": {"id": "V7"}, "startTime": "2025-01-01T10:00:00Z"}`)

	rec, err := ParseInterval("", raw)
	require.NoError(t, err)
	assert.Equal(t, "V7", rec.AssetID)
}

func TestParseInterval_RejectsMissingStart(t *testing.T) {
	_, err := ParseInterval("V1", rawFromJSON(t, `{"endTime": "2025-01-01T10:01:21Z"}`))

	require.Error(t, err)
	assert.True(t, apperrors.IsMalformedUpstream(err))
}
