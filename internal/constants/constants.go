package constants

import "time"

const (
	ServiceName = "relay-service"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 10 * time.Second
	ShutdownTimeout    = 5 * time.Second
)

const (
	DefaultChunkSize        = 200
	DefaultMaxPages         = 50
	DefaultChunkConcurrency = 4
)

const (
	KmhToMph = 0.621371
)

const (
	CacheKeyVehicleRoster = "safetyrelay:vehicles:roster"
)

const (
	DefaultMongoDBName        = "safetyrelay"
	ProcessedEventsCollection = "processed_events"
	VehicleRoutesCollection   = "vehicle_routes"
	DeliveredEventsTable      = "delivered_events"
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

const (
	BrokerKafka = "kafka"
	BrokerNATS  = "nats"
)

// Telegram API limits.
const (
	MaxCaptionLength = 1024
	MaxMessageLength = 4096
)
