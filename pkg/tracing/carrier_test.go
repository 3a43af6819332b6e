package tracing

import (
	"context"
	"net/http"
	"testing"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetyrelay/internal/config"
)

func TestKafkaHeaders_RoundTrip(t *testing.T) {
	tp, err := Init(config.TracingConfig{}, "carrier-test")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	ctx, span := GetTracer("carrier-test").Start(context.Background(), "publish")
	defer span.End()

	headers := InjectKafkaHeaders(ctx, []kafka.Header{{Key: "content-type", Value: []byte("application/json")}})
	require.Len(t, headers, 2)

	extracted := ExtractKafkaHeaders(context.Background(), headers)
	assert.Equal(t, TraceID(ctx), TraceID(extracted))
	assert.NotEmpty(t, TraceID(ctx))
}

func TestNATSHeaders_RoundTrip(t *testing.T) {
	tp, err := Init(config.TracingConfig{}, "carrier-test")
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	ctx, span := GetTracer("carrier-test").Start(context.Background(), "publish")
	defer span.End()

	msg := nats.NewMsg("relay.notices")
	InjectNATSHeaders(ctx, msg)
	assert.NotEmpty(t, http.Header(msg.Header).Get("traceparent"))

	extracted := ExtractNATSHeaders(context.Background(), msg)
	assert.Equal(t, TraceID(ctx), TraceID(extracted))
}

func TestTraceID_EmptyWithoutSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}
