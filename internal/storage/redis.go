package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore shares login state between processes or hosts through Redis.
// Swap maps to SET ... GET and SetIfAbsent to SETNX, both single atomic
// commands.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisStore(redisClient redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "lf"
	}
	return &RedisStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.redis.Get(ctx, s.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Swap(ctx context.Context, key, value string) (string, bool, error) {
	prev, err := s.redis.SetArgs(ctx, s.key(key), value, redis.SetArgs{Get: true}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis swap %s: %w", key, err)
	}
	return prev, true, nil
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key, value string) (string, bool, error) {
	created, err := s.redis.SetNX(ctx, s.key(key), value, 0).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if created {
		return value, true, nil
	}
	current, err := s.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	return current, false, nil
}

func (s *RedisStore) Close() error {
	return s.redis.Close()
}
