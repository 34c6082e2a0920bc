package rateLimit

import (
	"context"
	"time"

	"github.com/robertarktes/hotel-reservations/internal/observability"
)

// Counter counts hits per key in fixed windows; the redis cache implements it.
type Counter interface {
	IncrWindow(ctx context.Context, key string, period time.Duration, now time.Time) (int64, error)
}

type RateLimiter struct {
	counter Counter
	now     func() time.Time
}

func NewRateLimiter(counter Counter) *RateLimiter {
	return &RateLimiter{counter: counter, now: time.Now}
}

// Allow reports whether key is still within rate hits per period. Counter
// failures are returned so the caller can decide to fail open.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error) {
	n, err := rl.counter.IncrWindow(ctx, key, period, rl.now())
	if err != nil {
		return true, err
	}
	if n > int64(rate) {
		observability.RateLimitExceeded.Inc()
		return false, nil
	}
	return true, nil
}
