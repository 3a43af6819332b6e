package events

import (
	"safetyrelay/internal/constants"
	apperrors "safetyrelay/pkg/errors"
	"safetyrelay/pkg/models"
)

var (
	intervalStartPaths = []string{"startTime", "start_time", "start"}
	intervalEndPaths   = []string{"endTime", "end_time", "end"}
	maxMphPaths        = []string{"maxSpeedMph", "maxSpeedMilesPerHour", "max_speed_mph"}
	limitMphPaths      = []string{"speedLimitMph", "postedSpeedLimitMilesPerHour", "speed_limit_mph"}
	maxKphPaths        = []string{"maxSpeedKilometersPerHour", "maxSpeedKph", "max_speed_kph"}
	limitKphPaths      = []string{"postedSpeedLimitKilometersPerHour", "speedLimitKph", "speed_limit_kph"}
	locationPaths      = []string{"location", "address"}
)

var consumedIntervalKeys = func() map[string]bool {
	keys := map[string]bool{"asset": true, "assetId": true, "severityLevel": true, "severity": true}
	for _, group := range [][]string{intervalStartPaths, intervalEndPaths, maxMphPaths, limitMphPaths, maxKphPaths, limitKphPaths, locationPaths} {
		for _, k := range group {
			keys[k] = true
		}
	}
	return keys
}()

// ParseInterval flattens one raw interval from the feed into a typed record,
// converting km/h speeds to mph. An interval without a start time cannot be
// keyed and is rejected as malformed.
func ParseInterval(assetID string, raw models.RawRecord) (models.SpeedingInterval, error) {
	if assetID == "" {
		assetID = firstString(raw, "asset.id", "assetId")
	}

	start := firstString(raw, intervalStartPaths...)
	if start == "" || assetID == "" {
		return models.SpeedingInterval{}, apperrors.ErrMalformedUpstream.WithDetails(map[string]interface{}{
			"asset_id": assetID,
			"reason":   "interval without asset or start time",
		})
	}

	rec := models.SpeedingInterval{
		AssetID:       assetID,
		StartTime:     start,
		EndTime:       firstString(raw, intervalEndPaths...),
		MaxSpeedMph:   speedMph(raw, maxMphPaths, maxKphPaths),
		SpeedLimitMph: speedMph(raw, limitMphPaths, limitKphPaths),
		SeverityLevel: firstString(raw, severityPaths...),
	}

	for _, p := range locationPaths {
		if v, ok := lookup(raw, p); ok {
			if m, ok := asMap(v); ok {
				rec.Location = m
			} else if s := stringValue(v); s != "" {
				rec.Location = map[string]interface{}{"formattedAddress": s}
			}
			break
		}
	}

	for k, v := range raw {
		if consumedIntervalKeys[k] || v == nil {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]interface{})
		}
		rec.Extra[k] = v
	}

	return rec, nil
}

func speedMph(raw models.RawRecord, mphPaths, kphPaths []string) float64 {
	if v, ok := firstFloat(raw, mphPaths...); ok {
		return v
	}
	if v, ok := firstFloat(raw, kphPaths...); ok {
		return v * constants.KmhToMph
	}
	return 0
}
