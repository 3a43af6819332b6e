package events

import (
	"strings"
	"time"

	"safetyrelay/pkg/models"
)

// Video fields in priority order. Forward-facing footage is the most useful
// for coaching and disputes, so it always wins.
var (
	forwardVideoPaths = []string{"forwardVideoUrl", "downloadForwardVideoUrl", "videos.forward", "media.forward.url"}
	inwardVideoPaths  = []string{"inwardVideoUrl", "downloadInwardVideoUrl", "videos.inward", "media.inward.url"}
	rearVideoPaths    = []string{"rearVideoUrl", "downloadRearVideoUrl", "videos.rear", "media.rear.url"}
	genericVideoPaths = []string{"videoUrl", "downloadVideoUrl", "mediaUrl", "media.url"}
)

var (
	eventIDPaths   = []string{"id", "eventId", "event_id"}
	eventTimePaths = []string{"time", "happenedAtTime", "eventTime", "startTime", "timestamp"}
	typePaths      = []string{"type", "eventType", "behaviorType", "category"}
	assetIDPaths   = []string{"vehicle.id", "asset.id", "vehicleId", "assetId"}
	vehicleNames   = []string{"vehicle.name", "asset.name", "vehicleName", "assetName"}
	driverIDPaths  = []string{"driver.id", "driverId"}
	severityPaths  = []string{"severity", "severityLevel"}
)

// media entries keyed by camera input name
var mediaInputs = map[string]string{
	"dashcamforwardfacing": "forward",
	"forward":              "forward",
	"dashcaminwardfacing":  "inward",
	"dashcamdriverfacing":  "inward",
	"inward":               "inward",
	"dashcamrearfacing":    "rear",
	"rear":                 "rear",
}

// NormalizeType lower-cases a label and replaces whitespace with underscores.
func NormalizeType(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "_")
}

// NormalizeSafetyEvent maps one discrete safety event onto the unified model.
// fetchedAt stands in for the occurrence time when upstream omits it.
func NormalizeSafetyEvent(raw models.RawRecord, fetchedAt time.Time) models.UnifiedEvent {
	labels := behaviorLabels(raw)

	eventType := ""
	rawLabel := ""
	if len(labels) > 0 {
		normalized := make([]string, 0, len(labels))
		for _, l := range labels {
			normalized = append(normalized, NormalizeType(l))
		}
		eventType = strings.Join(normalized, ",")
		rawLabel = strings.Join(labels, ", ")
	} else {
		rawLabel = firstString(raw, typePaths...)
		eventType = NormalizeType(rawLabel)
	}

	occurredAt, timed := firstTime(raw, eventTimePaths...)
	if !timed {
		occurredAt = fetchedAt.UTC()
	}

	details := map[string]interface{}{}
	if loc, ok := lookup(raw, "location"); ok {
		details["location"] = loc
	}
	if len(labels) > 0 {
		details["behavior_labels"] = labels
	}
	if v, ok := firstFloat(raw, "maxSpeedMph", "speedMph"); ok {
		details["max_speed_mph"] = v
	}
	if v, ok := firstFloat(raw, "speedLimitMph"); ok {
		details["speed_limit_mph"] = v
	}
	if name := firstString(raw, "driver.name", "driverName"); name != "" {
		details["driver_name"] = name
	}

	return models.UnifiedEvent{
		Source:      models.SourceSafety,
		ID:          firstString(raw, eventIDPaths...),
		Type:        eventType,
		OccurredAt:  occurredAt,
		Severity:    firstString(raw, severityPaths...),
		AssetID:     firstString(raw, assetIDPaths...),
		VehicleName: firstString(raw, vehicleNames...),
		DriverID:    firstString(raw, driverIDPaths...),
		Details:     details,
		VideoURL:    ExtractVideoURL(raw),
		RawLabel:    rawLabel,

		TimeSubstituted: !timed,
	}
}

// NormalizeSpeedingInterval maps a flattened interval record. Only records
// that already passed the severity gate reach here, hence the fixed type.
func NormalizeSpeedingInterval(rec models.SpeedingInterval, fetchedAt time.Time) models.UnifiedEvent {
	start, startOK := parseInstant(rec.StartTime)
	end, endOK := parseInstant(rec.EndTime)

	occurredAt := fetchedAt.UTC()
	if startOK {
		occurredAt = start
	}

	details := map[string]interface{}{
		"max_speed_mph":   rec.MaxSpeedMph,
		"speed_limit_mph": rec.SpeedLimitMph,
	}
	if rec.Location != nil {
		details["location"] = rec.Location
	}
	for k, v := range rec.Extra {
		if _, exists := details[k]; !exists {
			details[k] = v
		}
	}

	ev := models.UnifiedEvent{
		Source:     models.SourceSpeedingInterval,
		ID:         SpeedingIntervalID(rec.AssetID, rec.StartTime, rec.EndTime),
		Type:       models.TypeSevereSpeeding,
		OccurredAt: occurredAt,
		Severity:   rec.SeverityLevel,
		AssetID:    rec.AssetID,
		Details:    details,

		TimeSubstituted: !startOK,
	}
	if endOK {
		ev.EndedAt = &end
	}
	return ev
}

// SpeedingIntervalID is the natural key of an interval: the feed carries no
// id of its own. Times are re-rendered in UTC so equivalent offsets collapse.
func SpeedingIntervalID(assetID, start, end string) string {
	return "speeding:" + strings.TrimSpace(assetID) + ":" + canonicalInstant(start) + ":" + canonicalInstant(end)
}

func canonicalInstant(s string) string {
	if t, ok := parseInstant(s); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return strings.TrimSpace(s)
}

func parseInstant(s string) (time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, false
	}
	t, err := ParseTime(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ExtractVideoURL picks the best available clip: forward, inward, rear, then
// any generic media field.
func ExtractVideoURL(raw models.RawRecord) string {
	byInput := mediaByInput(raw)
	return firstNonEmpty(
		firstString(raw, forwardVideoPaths...), byInput["forward"],
		firstString(raw, inwardVideoPaths...), byInput["inward"],
		firstString(raw, rearVideoPaths...), byInput["rear"],
		firstString(raw, genericVideoPaths...), byInput[""],
	)
}

// mediaByInput indexes a "media" list of {input, url} entries by camera.
func mediaByInput(raw models.RawRecord) map[string]string {
	out := map[string]string{}
	v, ok := lookup(raw, "media")
	if !ok {
		return out
	}
	list, ok := v.([]interface{})
	if !ok {
		return out
	}
	for _, item := range list {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		entry := models.RawRecord(m)
		url := firstString(entry, "url", "downloadUrl", "videoUrl")
		if url == "" {
			continue
		}
		input := strings.ToLower(strings.ReplaceAll(firstString(entry, "input", "type", "camera"), "_", ""))
		camera := mediaInputs[input]
		if _, seen := out[camera]; !seen {
			out[camera] = url
		}
	}
	return out
}

func behaviorLabels(raw models.RawRecord) []string {
	v, ok := lookup(raw, "behaviorLabels")
	if !ok {
		return nil
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	labels := make([]string, 0, len(list))
	for _, item := range list {
		switch l := item.(type) {
		case string:
			if s := strings.TrimSpace(l); s != "" {
				labels = append(labels, s)
			}
		default:
			if m, ok := asMap(item); ok {
				if s := firstString(models.RawRecord(m), "label", "name", "type"); s != "" {
					labels = append(labels, s)
				}
			}
		}
	}
	return labels
}
