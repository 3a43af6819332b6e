package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"safetyrelay/internal/config"
	"safetyrelay/internal/logger"
	apperrors "safetyrelay/pkg/errors"
	"safetyrelay/pkg/metrics"
)

const (
	defaultTickInterval = 60 * time.Second
	defaultHousekeeping = time.Hour
	defaultRetention    = 7 * 24 * time.Hour
)

type Ticker interface {
	RunTick(ctx context.Context) Report
}

type Purger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler drives ticks at a fixed interval. A tick that is still running
// when the next one is due causes that next one to be skipped.
type Scheduler struct {
	ticker       Ticker
	purger       Purger
	interval     time.Duration
	housekeeping time.Duration
	retention    time.Duration
	logger       logger.Logger

	running  atomic.Bool
	purging  atomic.Bool
	inflight sync.WaitGroup
}

func NewScheduler(ticker Ticker, purger Purger, cfg config.SchedulerConfig, log logger.Logger) *Scheduler {
	s := &Scheduler{
		ticker:       ticker,
		purger:       purger,
		interval:     cfg.Interval(),
		housekeeping: cfg.HousekeepingInterval,
		retention:    cfg.Retention(),
		logger:       log,
	}
	if s.interval <= 0 {
		s.interval = defaultTickInterval
	}
	if s.housekeeping <= 0 {
		s.housekeeping = defaultHousekeeping
	}
	if s.retention <= 0 {
		s.retention = defaultRetention
	}
	return s
}

// Run ticks once immediately and then on every interval until ctx is done.
// It waits for in-flight work before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	tick := time.NewTicker(s.interval)
	defer tick.Stop()
	purge := time.NewTicker(s.housekeeping)
	defer purge.Stop()

	s.logger.Infow("Scheduler started",
		"interval", s.interval,
		"housekeeping_interval", s.housekeeping,
		"retention", s.retention,
	)

	s.TriggerTick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.inflight.Wait()
			s.logger.Info("Scheduler stopped")
			return nil
		case <-tick.C:
			s.TriggerTick(ctx)
		case <-purge.C:
			s.TriggerHousekeeping(ctx)
		}
	}
}

// TriggerTick starts a tick in the background. It returns false when the
// previous tick has not finished yet.
func (s *Scheduler) TriggerTick(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		metrics.TicksTotal.WithLabelValues("skipped").Inc()
		s.logger.Warnw("Previous tick still running, skipping")
		return false
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.running.Store(false)
		s.runTick(ctx)
	}()
	return true
}

func (s *Scheduler) runTick(ctx context.Context) {
	start := time.Now()
	err := apperrors.Guard(func() error {
		s.ticker.RunTick(ctx)
		return nil
	})

	status := "ok"
	if err != nil {
		status = "panic"
		s.logger.ErrorwCtx(ctx, "Tick panicked", "error", err)
	}
	metrics.TicksTotal.WithLabelValues(status).Inc()
	metrics.ObserveTickDuration(time.Since(start), status)
}

// TriggerHousekeeping purges old ledger rows in the background unless a
// purge is already running.
func (s *Scheduler) TriggerHousekeeping(ctx context.Context) bool {
	if s.purger == nil || !s.purging.CompareAndSwap(false, true) {
		return false
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.purging.Store(false)

		err := apperrors.Guard(func() error {
			_, err := s.purger.Purge(ctx, s.retention)
			return err
		})
		if err != nil {
			s.logger.ErrorwCtx(ctx, "Housekeeping failed", "error", err)
		}
	}()
	return true
}

// Wait blocks until background ticks and purges finish.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}
