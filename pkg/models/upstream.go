package models

// RawRecord is a decoded upstream JSON object. The telemetry provider is
// inconsistent about field names, so records stay untyped until normalized.
type RawRecord map[string]interface{}

// SpeedingInterval is one flattened record from the interval feed, with
// speeds already converted to mph.
type SpeedingInterval struct {
	AssetID       string                 `json:"asset_id"`
	StartTime     string                 `json:"start_time"`
	EndTime       string                 `json:"end_time"`
	MaxSpeedMph   float64                `json:"max_speed_mph"`
	SpeedLimitMph float64                `json:"speed_limit_mph"`
	SeverityLevel string                 `json:"severity_level,omitempty"`
	Location      map[string]interface{} `json:"location,omitempty"`
	Extra         map[string]interface{} `json:"extra,omitempty"`
}

// OverLimitMph is how far the peak speed exceeded the posted limit.
func (s SpeedingInterval) OverLimitMph() float64 {
	return s.MaxSpeedMph - s.SpeedLimitMph
}

type Vehicle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
