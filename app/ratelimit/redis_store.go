package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ugc-forge/app/config"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares counters between instances through redis INCR.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(cfg config.RedisConfig) *RedisStore {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    strings.Split(cfg.Addr, ","),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisStoreWithClient(client, cfg.KeyPrefix)
}

func NewRedisStoreWithClient(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Ping checks the connection at startup.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := s.prefix + key

	count, err := s.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("incr %s: %w", k, err)
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("expire %s: %w", k, err)
		}
	}

	ttl, err := s.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("pttl %s: %w", k, err)
	}
	if ttl < 0 {
		// the expiry was lost between INCR and PEXPIRE, restart the window
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("expire %s: %w", k, err)
		}
		ttl = window
	}
	return count, time.Now().Add(ttl), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
