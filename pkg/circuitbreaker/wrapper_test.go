package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetyrelay/internal/config"
)

func TestWrapper_OpensAfterFailureRatio(t *testing.T) {
	w := NewWrapper(FromSettings("test_open", config.CircuitBreakerConfig{
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      time.Minute,
		FailureRatio: 0.5,
		MinRequests:  2,
	}))

	boom := errors.New("boom")
	for i := 0; i < 2; i++ {
		err := w.Run(context.Background(), func() error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.True(t, w.IsOpen())

	called := false
	err := w.Run(context.Background(), func() error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.True(t, IsBreakerError(err))
}

func TestWrapper_CancelledContextSkipsCall(t *testing.T) {
	w := NewWrapper(DefaultConfig("test_cancel"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, gobreaker.StateClosed, w.State())
}

func TestWrapper_IsSuccessfulExcludesErrors(t *testing.T) {
	benign := errors.New("not found")
	cfg := DefaultConfig("test_benign")
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, benign) }
	w := NewWrapper(cfg)

	for i := 0; i < 5; i++ {
		_ = w.Run(context.Background(), func() error { return benign })
	}

	assert.False(t, w.IsOpen())
}

func TestFromSettings_Defaults(t *testing.T) {
	cfg := FromSettings("defaults", config.CircuitBreakerConfig{})

	assert.Equal(t, uint32(3), cfg.MaxRequests)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.False(t, cfg.ReadyToTrip(gobreaker.Counts{Requests: 2, TotalFailures: 2}))
	assert.True(t, cfg.ReadyToTrip(gobreaker.Counts{Requests: 4, TotalFailures: 2}))
}
