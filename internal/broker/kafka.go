package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"safetyrelay/internal/config"
	"safetyrelay/internal/constants"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/metrics"
	"safetyrelay/pkg/models"
	"safetyrelay/pkg/tracing"
)

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger logger.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log logger.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           constants.KafkaBatchTimeout,
		WriteTimeout:           constants.KafkaWriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, topic: cfg.NoticeTopic, logger: log}
}

func (p *KafkaPublisher) Name() string {
	return constants.BrokerKafka
}

// Publish writes the notice keyed by event id so notices for the same event
// land on one partition.
func (p *KafkaPublisher) Publish(ctx context.Context, notice models.DeliveryNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	headers := tracing.InjectKafkaHeaders(ctx, []kafka.Header{
		{Key: "source", Value: []byte(notice.Source)},
	})

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(notice.EventID),
		Value:   body,
		Headers: headers,
		Time:    time.Now(),
	})
	if err != nil {
		metrics.NoticesPublishedTotal.WithLabelValues(p.Name(), "error").Inc()
		return fmt.Errorf("failed to write kafka message: %w", err)
	}

	metrics.NoticesPublishedTotal.WithLabelValues(p.Name(), "ok").Inc()
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
