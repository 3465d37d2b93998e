package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

type memoryWindow struct {
	start time.Time
	count int64
}

// MemoryStore keeps counters in process memory. Each instance of the service has
// its own counters, so a deployment of N instances admits up to N times the limit.
type MemoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	now   func() time.Time
}

func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
		now:   time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var w *memoryWindow
	if v, ok := s.cache.Get(key); ok {
		w = v.(*memoryWindow)
	}
	if w == nil || !now.Before(w.start.Add(window)) {
		w = &memoryWindow{start: now}
	}
	w.count++

	resetAt := w.start.Add(window)
	s.cache.Set(key, w, resetAt.Sub(now))
	return w.count, resetAt, nil
}

func (s *MemoryStore) Close() error {
	s.cache.Flush()
	return nil
}
