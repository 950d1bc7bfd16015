package notification

import (
	"context"
	"sync"
	"time"
)

// TokenBucket is a thread-safe in-memory token bucket. Tokens are stored
// as a float so refills accrue between whole sends.
type TokenBucket struct {
	capacity   int
	tokens     float64
	rate       float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a bucket with the given capacity and refill rate
// in tokens per second. The bucket starts full.
func NewTokenBucket(capacity int, rate float64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		rate:       rate,
		lastRefill: time.Now(),
	}
}

// PerHour creates a bucket sized for a per-hour send quota, the shape the
// dispatcher uses for chat-level alert throttling.
func PerHour(limit int) *TokenBucket {
	return NewTokenBucket(limit, float64(limit)/time.Hour.Seconds())
}

// Take attempts to consume a token. Returns false when rate limited.
func (tb *TokenBucket) Take() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked()
	if tb.tokens >= 1 {
		tb.tokens -= 1
		return true
	}
	return false
}

// Wait blocks until a token is available or the context ends.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for {
		if tb.Take() {
			return nil
		}

		timer := time.NewTimer(tb.retryAfter())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Remaining returns the number of whole tokens left.
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked()
	return int(tb.tokens)
}

// retryAfter estimates the wait until the next whole token.
func (tb *TokenBucket) retryAfter() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked()

	if tb.tokens >= 1 {
		return 0
	}

	missing := 1 - tb.tokens
	return time.Duration(missing / tb.rate * float64(time.Second))
}

// refillLocked refills tokens from elapsed time. Caller must hold tb.mu.
func (tb *TokenBucket) refillLocked() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens += elapsed * tb.rate
		if tb.tokens > float64(tb.capacity) {
			tb.tokens = float64(tb.capacity)
		}
		tb.lastRefill = now
	}
}
