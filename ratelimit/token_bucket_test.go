package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketStartsFull(t *testing.T) {
	b := NewTokenBucket(10, 1)
	assert.InDelta(t, 10, b.Tokens(), 0.01)
}

func TestTokenBucketDebitAndRefill(t *testing.T) {
	b := NewTokenBucket(10, 2)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return current }
	b.updatedAt = current

	require.NoError(t, b.WaitForTokens(context.Background(), 4))
	assert.InDelta(t, 6, b.Tokens(), 0.01)

	// Two tokens per second accrue while idle, capped at capacity.
	current = current.Add(time.Second)
	assert.InDelta(t, 8, b.Tokens(), 0.01)

	current = current.Add(time.Minute)
	assert.InDelta(t, 10, b.Tokens(), 0.01)
}

func TestTokenBucketNeverGoesNegative(t *testing.T) {
	b := NewTokenBucket(5, 1000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.WaitForTokens(context.Background(), 1)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, b.Tokens(), 0.0)
}

func TestTokenBucketWaitBlocksUntilRefill(t *testing.T) {
	b := NewTokenBucket(2, 100)
	require.NoError(t, b.WaitForTokens(context.Background(), 2))

	started := time.Now()
	require.NoError(t, b.WaitForTokens(context.Background(), 1))
	assert.GreaterOrEqual(t, time.Since(started), 5*time.Millisecond)
}

func TestTokenBucketRequestExceedsCapacity(t *testing.T) {
	b := NewTokenBucket(5, 1)
	err := b.WaitForTokens(context.Background(), 6)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds bucket capacity")
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	b := NewTokenBucket(1, 0.001)
	require.NoError(t, b.WaitForTokens(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.WaitForTokens(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTokenBucketNonPositiveConfigFloored(t *testing.T) {
	b := NewTokenBucket(0, -5)
	assert.InDelta(t, 1, b.Tokens(), 0.01)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return current }
	b.updatedAt = current

	require.NoError(t, b.WaitForTokens(context.Background(), 1))
	assert.InDelta(t, 0, b.Tokens(), 0.01)

	// The floored refill rate still makes progress rather than dividing by
	// zero in the wait computation.
	current = current.Add(time.Second)
	assert.InDelta(t, 1, b.Tokens(), 0.01)
}

func TestTokenBucketZeroRequest(t *testing.T) {
	b := NewTokenBucket(5, 1)
	assert.NoError(t, b.WaitForTokens(context.Background(), 0))
	assert.InDelta(t, 5, b.Tokens(), 0.01)
}
