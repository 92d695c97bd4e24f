package concurrency

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at rate R requests
// per second, clamped to [0, R]. Multiple concurrent acquirers are served
// in no particular order; the only guarantee is that each eventually
// proceeds under continuous refill.
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64 // tokens per second
	max        float64
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter constructs a limiter that allows r requests per second.
func NewRateLimiter(r int) *RateLimiter {
	if r <= 0 {
		r = 1
	}
	return &RateLimiter{
		rate:       float64(r),
		max:        float64(r),
		tokens:     float64(r),
		lastRefill: time.Now(),
	}
}

func (l *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.tokens += elapsed * l.rate
	if l.tokens > l.max {
		l.tokens = l.max
	}
	l.lastRefill = now
}

// Acquire blocks until at least one token is available, then consumes it.
func (l *RateLimiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}
