//go:build integration

package broker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"safetyrelay/internal/config"
	"safetyrelay/internal/logger"
	"safetyrelay/pkg/models"
)

func TestKafkaPublisher_DeliversToBroker(t *testing.T) {
	ctx := context.Background()

	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("relay-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)

	const topic = "relay.notices.it"
	p := NewKafkaPublisher(config.KafkaConfig{Brokers: brokers, NoticeTopic: topic}, logger.NopLogger())
	t.Cleanup(func() { _ = p.Close() })

	notice := models.DeliveryNotice{ID: "n-1", EventID: "evt-9", Source: models.SourceSpeedingInterval, Mode: "text", SentAt: time.Now().UTC()}

	// the first write may race topic auto-creation
	require.Eventually(t, func() bool {
		return p.Publish(ctx, notice) == nil
	}, 30*time.Second, time.Second)

	reader := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, StartOffset: kafka.FirstOffset})
	t.Cleanup(func() { _ = reader.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)

	assert.Equal(t, "evt-9", string(msg.Key))
	var got models.DeliveryNotice
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, notice.ID, got.ID)
	assert.Equal(t, models.SourceSpeedingInterval, got.Source)
}
