// Package cacheredis provides a Redis-backed TTL cache keyed like
// internal/cache.TTLStore. Its API differs from TTLStore's (it takes a
// context and a decode target and returns errors), so it does not
// replace TTLStore; the pipeline uses it only to mirror archived run
// outputs for shared lookup across processes. Adapted from
// cryptorun's CRun0.9/src/infrastructure/cache/redis_cache.go.
package cacheredis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hoopvalue/engine/internal/cache"
)

// Store wraps a redis.Client behind the same key/value shape as
// internal/cache.TTLStore, serializing values as JSON.
type Store struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// New constructs a Store against the given Redis address/DB.
func New(addr string, db int, defaultTTL time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Store{
		client:     redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		defaultTTL: defaultTTL,
	}
}

func (s *Store) redisKey(key cache.Key) string {
	return key.Upstream + ":" + key.EntityID + ":" + key.QueryShape
}

// Get fetches and JSON-decodes a value into dest, returning (true, nil)
// on a hit, (false, nil) on a miss or expired key (Redis itself
// enforces TTL expiry), and (false, err) on a Redis or decode error.
func (s *Store) Get(ctx context.Context, key cache.Key, dest interface{}) (bool, error) {
	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set JSON-encodes and stores a value with an optional TTL override.
func (s *Store) Set(ctx context.Context, key cache.Key, value interface{}, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.redisKey(key), raw, ttl).Err()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.client.Close()
}
