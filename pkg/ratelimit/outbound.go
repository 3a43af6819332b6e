package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"safetyrelay/pkg/metrics"
)

// Outbound paces calls to an external API. A nil *Outbound never waits.
type Outbound struct {
	limiter *rate.Limiter
}

func NewOutbound(rps float64, burst int) *Outbound {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Outbound{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until a call may proceed or ctx is done.
func (o *Outbound) Wait(ctx context.Context) error {
	if o == nil {
		return nil
	}
	if err := o.limiter.Wait(ctx); err != nil {
		return err
	}
	metrics.RateLimitRequestsTotal.WithLabelValues("outbound").Inc()
	return nil
}
