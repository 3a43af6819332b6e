package broker

import (
	"fmt"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/logger"
)

func NewPublisher(cfg config.BrokerConfig, log logger.Logger) (Publisher, error) {
	switch cfg.Type {
	case "":
		return NopPublisher(), nil
	case constants.BrokerKafka:
		return NewKafkaPublisher(cfg.Kafka, log), nil
	case constants.BrokerNATS:
		return NewNATSPublisher(cfg.NATS, log)
	default:
		return nil, fmt.Errorf("unknown broker type: %s", cfg.Type)
	}
}
