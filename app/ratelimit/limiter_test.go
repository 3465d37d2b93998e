package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newMemoryLimiter(limit int, window time.Duration, clock *fakeClock) *Limiter {
	store := NewMemoryStore(time.Minute)
	store.now = clock.Now
	l := New(store, limit, window)
	l.now = clock.Now
	return l
}

func TestMemoryLimiterRejectsOverLimitAndResets(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := newMemoryLimiter(100, time.Minute, clock)

	for i := 0; i < 100; i++ {
		d, err := l.Allow(ctx, "203.0.113.7")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d should be admitted", i+1)
	}

	d, err := l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.RetryAfter)

	clock.now = clock.now.Add(45 * time.Second)
	d, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 15*time.Second, d.RetryAfter)

	clock.now = clock.now.Add(15 * time.Second)
	d, err = l.Allow(ctx, "203.0.113.7")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 99, d.Remaining)
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := newMemoryLimiter(1, time.Minute, clock)

	d, _ := l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a")
	assert.False(t, d.Allowed)

	d, _ = l.Allow(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestRetryAfterIsAtLeastOneSecond(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := newMemoryLimiter(1, time.Minute, clock)

	_, _ = l.Allow(ctx, "a")
	clock.now = clock.now.Add(time.Minute - 200*time.Millisecond)
	d, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)
}

func TestRedisStoreSharesCountersAcrossLimiters(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreWithClient(client, "test:")
	require.NoError(t, store.Ping(ctx))

	// two limiters on one store behave like two service instances
	first := New(store, 3, time.Minute)
	second := New(store, 3, time.Minute)

	for _, l := range []*Limiter{first, second, first} {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := second.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)
	assert.Equal(t, time.Minute, mr.TTL("test:10.0.0.1"))

	mr.FastForward(61 * time.Second)

	d, err = first.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
}

func TestLimiterFailsOpenOnStoreError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	l := New(NewRedisStoreWithClient(client, "test:"), 1, time.Minute)
	mr.Close()

	d, err := l.Allow(context.Background(), "10.0.0.1")
	assert.Error(t, err)
	assert.True(t, d.Allowed)
}
