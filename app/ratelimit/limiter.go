// Package ratelimit caps requests per caller in fixed time windows.
package ratelimit

import (
	"context"
	"time"
)

// Store keeps the per-key window counters. Implementations must make Incr atomic
// for a single key.
type Store interface {
	// Incr records one hit for key and returns the hit count of the current window
	// together with the moment the window resets.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
	Close() error
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter admits at most limit requests per key in every window.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	now    func() time.Time
}

func New(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow counts a request for key and decides whether it may proceed.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	count, resetAt, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit}, err
	}

	d := Decision{
		Allowed: count <= int64(l.limit),
		Limit:   l.limit,
		ResetAt: resetAt,
	}
	if d.Allowed {
		d.Remaining = l.limit - int(count)
		return d, nil
	}

	d.RetryAfter = resetAt.Sub(l.now())
	if d.RetryAfter < time.Second {
		d.RetryAfter = time.Second
	}
	return d, nil
}

// Close releases the underlying store.
func (l *Limiter) Close() error {
	return l.store.Close()
}
