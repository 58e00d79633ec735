package lock

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key holding the record.
const DefaultRedisKey = "urlcheck:session_lock"

// RedisStore keeps the record under one Redis key, shared by every process
// that talks to the same Redis.
type RedisStore struct {
	redis *redis.Client
	key   string
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(redisClient *redis.Client, key string) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{redis: redisClient, key: key}
}

// Create stores the record with SETNX. The marker has no expiry; an
// abandoned lock is cleared with ForceRelease.
func (s *RedisStore) Create(ctx context.Context, rec Record) (bool, error) {
	data, err := encodeRecord(rec)
	if err != nil {
		return false, err
	}

	ok, err := s.redis.SetNX(ctx, s.key, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// Load fetches the record.
func (s *RedisStore) Load(ctx context.Context) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return decodeRecord(data)
}

// Delete removes the key.
func (s *RedisStore) Delete(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
