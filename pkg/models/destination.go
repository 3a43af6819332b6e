package models

// Destination is a chat the relay can deliver to.
type Destination struct {
	ChatID      int64  `json:"chat_id" bson:"chat_id"`
	Mention     string `json:"mention,omitempty" bson:"mention,omitempty"`
	VehicleName string `json:"vehicle_name,omitempty" bson:"vehicle_name,omitempty"`
	Label       string `json:"label,omitempty" bson:"label,omitempty"`
}
