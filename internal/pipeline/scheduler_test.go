package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"safetyrelay/internal/config"
	"safetyrelay/internal/logger"
)

type blockingTicker struct {
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func (b *blockingTicker) RunTick(context.Context) Report {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	return Report{}
}

type panickingTicker struct{ calls atomic.Int32 }

func (p *panickingTicker) RunTick(context.Context) Report {
	p.calls.Add(1)
	panic("tick exploded")
}

type fakePurger struct {
	retention time.Duration
	done      chan struct{}
}

func (f *fakePurger) Purge(_ context.Context, retention time.Duration) (int64, error) {
	f.retention = retention
	close(f.done)
	return 3, nil
}

func TestScheduler_SkipsOverlappingTicks(t *testing.T) {
	ticker := &blockingTicker{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := NewScheduler(ticker, nil, config.SchedulerConfig{}, logger.NopLogger())
	ctx := context.Background()

	require.True(t, s.TriggerTick(ctx))
	<-ticker.started

	assert.False(t, s.TriggerTick(ctx))
	assert.False(t, s.TriggerTick(ctx))

	close(ticker.release)
	s.Wait()

	require.True(t, s.TriggerTick(ctx))
	<-ticker.started
	s.Wait()

	assert.Equal(t, int32(2), ticker.calls.Load())
}

func TestScheduler_RecoversTickPanic(t *testing.T) {
	ticker := &panickingTicker{}
	s := NewScheduler(ticker, nil, config.SchedulerConfig{}, logger.NopLogger())

	require.True(t, s.TriggerTick(context.Background()))
	s.Wait()

	require.True(t, s.TriggerTick(context.Background()))
	s.Wait()
	assert.Equal(t, int32(2), ticker.calls.Load())
}

func TestScheduler_HousekeepingUsesRetention(t *testing.T) {
	purger := &fakePurger{done: make(chan struct{})}
	s := NewScheduler(&panickingTicker{}, purger, config.SchedulerConfig{RetentionDays: 3}, logger.NopLogger())

	require.True(t, s.TriggerHousekeeping(context.Background()))
	<-purger.done
	s.Wait()

	assert.Equal(t, 72*time.Hour, purger.retention)
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	ticker := &blockingTicker{started: make(chan struct{}, 1), release: make(chan struct{})}
	close(ticker.release)
	s := NewScheduler(ticker, nil, config.SchedulerConfig{IntervalSeconds: 3600}, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-ticker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick did not run")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
