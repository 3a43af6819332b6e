package models

import "time"

type EventSource string

const (
	SourceSafety           EventSource = "safety"
	SourceSpeedingInterval EventSource = "speeding_interval"
)

const TypeSevereSpeeding = "severe_speeding"

// UnifiedEvent is the canonical record flowing through the relay pipeline.
// ID is deterministic from upstream data so the same occurrence always
// collapses to the same key, both within a batch and across restarts.
type UnifiedEvent struct {
	Source      EventSource            `json:"source"`
	ID          string                 `json:"id"`
	Type        string                 `json:"type"`
	OccurredAt  time.Time              `json:"occurred_at"`
	EndedAt     *time.Time             `json:"ended_at,omitempty"`
	Severity    string                 `json:"severity,omitempty"`
	AssetID     string                 `json:"asset_id,omitempty"`
	VehicleName string                 `json:"vehicle_name,omitempty"`
	DriverID    string                 `json:"driver_id,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	VideoURL    string                 `json:"video_url,omitempty"`
	RawLabel    string                 `json:"raw_label,omitempty"`
	// TimeSubstituted is set when upstream carried no occurrence time and
	// OccurredAt holds the fetch time instead. Age is meaningless then.
	TimeSubstituted bool `json:"time_substituted,omitempty"`
}

func (e UnifiedEvent) IsSafety() bool {
	return e.Source == SourceSafety
}

func (e UnifiedEvent) IsSpeeding() bool {
	return e.Source == SourceSpeedingInterval
}

// Age is measured from OccurredAt; events timestamped in the future have age zero.
func (e UnifiedEvent) Age(now time.Time) time.Duration {
	age := now.Sub(e.OccurredAt)
	if age < 0 {
		return 0
	}
	return age
}

func (e UnifiedEvent) Detail(key string) (interface{}, bool) {
	if e.Details == nil {
		return nil, false
	}
	v, ok := e.Details[key]
	return v, ok
}

// DeliveryRecord is a row in the delivery ledger. It exists only for events
// that were confirmed sent.
type DeliveryRecord struct {
	EventID string    `json:"event_id" bson:"event_id"`
	Type    string    `json:"type" bson:"type"`
	SentAt  time.Time `json:"sent_at" bson:"sent_at"`
}

// ProcessedRecord is the audit entry for an event the pipeline decided about.
type ProcessedRecord struct {
	EventID     string      `json:"event_id" bson:"event_id"`
	Source      EventSource `json:"source" bson:"source"`
	Type        string      `json:"type" bson:"type"`
	VehicleName string      `json:"vehicle_name,omitempty" bson:"vehicle_name,omitempty"`
	Outcome     string      `json:"outcome" bson:"outcome"`
	Mode        string      `json:"mode,omitempty" bson:"mode,omitempty"`
	DecidedAt   time.Time   `json:"decided_at" bson:"decided_at"`
}
