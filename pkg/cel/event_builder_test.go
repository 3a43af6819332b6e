package cel

import (
	"time"

	"safetyrelay/pkg/models"
)

type eventBuilder struct {
	event models.UnifiedEvent
}

func newEventBuilder() *eventBuilder {
	return &eventBuilder{event: models.UnifiedEvent{
		Source:  models.SourceSafety,
		Details: map[string]interface{}{},
	}}
}

func (b *eventBuilder) WithID(id string) *eventBuilder {
	b.event.ID = id
	return b
}

func (b *eventBuilder) WithSource(source models.EventSource) *eventBuilder {
	b.event.Source = source
	return b
}

func (b *eventBuilder) WithType(eventType string) *eventBuilder {
	b.event.Type = eventType
	return b
}

func (b *eventBuilder) WithOccurredAt(ts time.Time) *eventBuilder {
	b.event.OccurredAt = ts
	return b
}

func (b *eventBuilder) WithVehicle(assetID, name string) *eventBuilder {
	b.event.AssetID = assetID
	b.event.VehicleName = name
	return b
}

func (b *eventBuilder) WithDetail(key string, value interface{}) *eventBuilder {
	b.event.Details[key] = value
	return b
}

func (b *eventBuilder) Build() models.UnifiedEvent {
	if b.event.OccurredAt.IsZero() {
		b.event.OccurredAt = time.Now()
	}
	return b.event
}
