package concurrency

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAllowsBurstUpToMax(t *testing.T) {
	l := NewRateLimiter(5)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d returned error: %v", i, err)
		}
	}
}

func TestRateLimiterBlocksBeyondBurst(t *testing.T) {
	l := NewRateLimiter(2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("Acquire() #%d returned error: %v", i, err)
		}
	}

	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("third acquire returned after %s, expected to wait for refill", elapsed)
	}
}

func TestRateLimiterRespectsContextCancellation(t *testing.T) {
	l := NewRateLimiter(1)
	ctx := context.Background()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() returned error: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := l.Acquire(cancelCtx)
	if err == nil {
		t.Error("expected Acquire to return an error once the context deadline is exceeded")
	}
}

func TestRateLimiterZeroOrNegativeRateDefaultsToOne(t *testing.T) {
	l := NewRateLimiter(0)
	if l.rate != 1 {
		t.Errorf("rate = %v, want 1", l.rate)
	}
	l2 := NewRateLimiter(-3)
	if l2.rate != 1 {
		t.Errorf("rate = %v, want 1", l2.rate)
	}
}
