// Package ratelimit implements the two per-tenant admission primitives used
// around the engine: a token bucket offering blocking backpressure, and a
// sliding window offering fast allow/deny decisions at request boundaries.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TokenBucket accumulates capacity continuously at a fixed refill rate and
// debits it per unit of work, allowing bursts up to capacity. The current
// level is computed lazily from elapsed time; no background timer runs.
//
// WaitForTokens is a blocking backpressure primitive, not a reject-fast one;
// use SlidingWindow for binary admission decisions.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	refillRate float64 // tokens per second
	tokens     float64
	updatedAt  time.Time
	now        func() time.Time
}

// NewTokenBucket creates a bucket that starts full. A non-positive capacity
// or refill rate is raised to 1 so WaitForTokens can always make progress.
func NewTokenBucket(capacity, refillPerSecond float64) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if refillPerSecond <= 0 {
		refillPerSecond = 1
	}
	now := time.Now
	return &TokenBucket{
		capacity:   capacity,
		refillRate: refillPerSecond,
		tokens:     capacity,
		updatedAt:  now(),
		now:        now,
	}
}

// refillLocked brings the token level up to date with elapsed time.
func (b *TokenBucket) refillLocked() {
	now := b.now()
	elapsed := now.Sub(b.updatedAt).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.refillRate
		if b.tokens > b.capacity {
			b.tokens = b.capacity
		}
	}
	b.updatedAt = now
}

// Tokens reports the current level, refilled lazily at query time.
func (b *TokenBucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked()
	return b.tokens
}

// WaitForTokens suspends the caller until n tokens are available, then debits
// them. It never debits more than the level available at completion time.
// Returns ctx.Err() if the context is cancelled while waiting, and an error
// immediately if n exceeds the bucket capacity (the wait could never end).
func (b *TokenBucket) WaitForTokens(ctx context.Context, n float64) error {
	if n <= 0 {
		return nil
	}

	for {
		b.mu.Lock()
		if n > b.capacity {
			b.mu.Unlock()
			return fmt.Errorf("ratelimit: requested %g tokens exceeds bucket capacity %g", n, b.capacity)
		}
		b.refillLocked()
		if b.tokens >= n {
			b.tokens -= n
			b.mu.Unlock()
			return nil
		}
		missing := n - b.tokens
		b.mu.Unlock()

		wait := time.Duration(missing / b.refillRate * float64(time.Second))
		if wait < time.Millisecond {
			wait = time.Millisecond
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
