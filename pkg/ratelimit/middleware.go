package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"safetyrelay/pkg/metrics"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimitConfig struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() RateLimitConfig {
	return RateLimitConfig{
		RPS:             1.0,
		Burst:           3,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// perClient hands out one token bucket per client key and forgets keys
// that have been idle longer than MaxAge.
type perClient struct {
	cfg      RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	lastGC   time.Time
}

func newPerClient(cfg RateLimitConfig) *perClient {
	return &perClient{cfg: cfg, limiters: make(map[string]*clientLimiter), lastGC: time.Now()}
}

func (p *perClient) get(key string, now time.Time) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.CleanupInterval > 0 && now.Sub(p.lastGC) > p.cfg.CleanupInterval {
		for k, l := range p.limiters {
			if now.Sub(l.lastSeen) > p.cfg.MaxAge {
				delete(p.limiters, k)
			}
		}
		p.lastGC = now
	}

	l, ok := p.limiters[key]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(p.cfg.RPS), p.cfg.Burst)}
		p.limiters[key] = l
	}
	l.lastSeen = now
	return l.limiter
}

// RateLimitMiddleware limits the operator endpoints per client IP.
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	clients := newPerClient(config)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		limiter := clients.get(clientIP, time.Now())
		if !limiter.Allow() {
			metrics.RateLimitRequestsTotal.WithLabelValues("limited").Inc()
			c.Header("X-RateLimit-Limit", formatRate(config.RPS))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			c.Abort()
			return
		}

		metrics.RateLimitRequestsTotal.WithLabelValues("allowed").Inc()
		c.Header("X-RateLimit-Limit", formatRate(config.RPS))
		remaining := int(limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

func formatRate(rps float64) string {
	return strconv.FormatFloat(rps, 'f', -1, 64)
}
