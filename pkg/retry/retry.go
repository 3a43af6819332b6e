package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"safetyrelay/internal/config"
	"safetyrelay/pkg/metrics"
)

type RetryableError interface {
	error
	IsRetryable() bool
}

type FatalError interface {
	error
	IsFatal() bool
}

// DelayHint is implemented by errors that carry a server-provided wait,
// such as a 429 with retry_after. The hint replaces the computed backoff
// for the next attempt.
type DelayHint interface {
	error
	RetryAfter() time.Duration
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) IsFatal() bool { return true }
func (e *fatalError) Unwrap() error { return e.err }

func NewFatalError(err error) FatalError {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
	// Component labels retry metrics.
	Component string
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  5 * time.Minute,
	}
}

func PolicyFromConfig(component string, cfg config.RetryConfig) Policy {
	p := DefaultPolicy()
	p.Component = component
	if cfg.MaxAttempts > 0 {
		p.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		p.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		p.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		p.Multiplier = cfg.Multiplier
	}
	p.MaxElapsedTime = cfg.MaxElapsedTime
	return p
}

func Retry(ctx context.Context, policy Policy, fn func() error) error {
	return RetryWithCallback(ctx, policy, fn, nil)
}

// RetryWithCallback runs fn until it succeeds, returns a FatalError, or the
// policy is exhausted. Errors that do not implement RetryableError are
// retried. onRetry is called before each wait.
func RetryWithCallback(ctx context.Context, policy Policy, fn func() error, onRetry func(attempt int, err error, nextDelay time.Duration)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}

	hinted := &hintedBackOff{inner: newExponential(policy)}
	b := backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(policy.MaxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		hinted.hint = 0

		err := fn()
		if err == nil {
			return nil
		}

		var fatalErr FatalError
		if errors.As(err, &fatalErr) && fatalErr.IsFatal() {
			return backoff.Permanent(err)
		}
		var retryableErr RetryableError
		if errors.As(err, &retryableErr) && !retryableErr.IsRetryable() {
			return backoff.Permanent(err)
		}

		var hint DelayHint
		if errors.As(err, &hint) && hint.RetryAfter() > 0 {
			hinted.hint = hint.RetryAfter()
		}

		if attempt < policy.MaxAttempts {
			if policy.Component != "" {
				metrics.RetryAttemptsTotal.WithLabelValues(policy.Component).Inc()
			}
			if onRetry != nil {
				next := hinted.hint
				if next == 0 {
					next = CalculateBackoffDuration(attempt-1, policy.InitialInterval, policy.Multiplier, policy.MaxInterval)
				}
				onRetry(attempt, err, next)
			}
		}

		return err
	}

	err := backoff.Retry(operation, b)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

type hintedBackOff struct {
	inner backoff.BackOff
	hint  time.Duration
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.inner.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if h.hint > 0 {
		return h.hint
	}
	return next
}

func (h *hintedBackOff) Reset() {
	h.hint = 0
	h.inner.Reset()
}
