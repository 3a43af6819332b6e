package broker

import (
	"context"

	"safetyrelay/pkg/models"
)

// Publisher announces completed deliveries to downstream consumers.
// Publish failures never affect the delivery outcome of an event.
type Publisher interface {
	Publish(ctx context.Context, notice models.DeliveryNotice) error
	Name() string
	Close() error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, models.DeliveryNotice) error { return nil }
func (nopPublisher) Name() string                                         { return "none" }
func (nopPublisher) Close() error                                         { return nil }

// NopPublisher is used when no broker is configured.
func NopPublisher() Publisher {
	return nopPublisher{}
}
