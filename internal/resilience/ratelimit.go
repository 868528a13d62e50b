package resilience

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	rate  float64 // tokens per second
	burst int     // max tokens
	now   func() time.Time

	mu         sync.Mutex
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a limiter that starts full. A nil clock uses time.Now.
func NewRateLimiter(rate float64, burst int, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		now:        now,
		tokens:     float64(burst),
		lastUpdate: now(),
	}
}

// PerMinute builds a limiter allowing n requests per minute with the given burst.
func PerMinute(n, burst int, now func() time.Time) *RateLimiter {
	return NewRateLimiter(float64(n)/60, burst, now)
}

// Allow takes a token if one is available.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.tokens += now.Sub(r.lastUpdate).Seconds() * r.rate
	r.lastUpdate = now
	if r.tokens > float64(r.burst) {
		r.tokens = float64(r.burst)
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if r.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
