package models

import "time"

// DeliveryNotice is published to the broker after a confirmed delivery.
type DeliveryNotice struct {
	ID          string      `json:"id"`
	EventID     string      `json:"event_id"`
	Source      EventSource `json:"source"`
	Type        string      `json:"type"`
	VehicleName string      `json:"vehicle_name,omitempty"`
	ChatID      int64       `json:"chat_id"`
	Mode        string      `json:"mode"`
	SentAt      time.Time   `json:"sent_at"`
	TraceID     string      `json:"trace_id,omitempty"`
}
