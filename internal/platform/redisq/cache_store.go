package redisq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore adapts Redis string commands to the key-value contract the
// OCR result cache depends on. TTL enforcement and key iteration are
// delegated to Redis, which keeps cache get/set atomic without any
// in-process locking.
type CacheStore struct {
	rdb redis.Cmdable
}

// NewCacheStore creates a cache store over the given Redis backend.
func NewCacheStore(rdb redis.Cmdable) *CacheStore {
	return &CacheStore{rdb: rdb}
}

// Get returns the value for key and whether it was present.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %q failed: %w", key, err)
	}
	return value, true, nil
}

// Set writes value under key with the given TTL.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q failed: %w", key, err)
	}
	return nil
}

// Del removes key. Deleting a missing key is not an error.
func (s *CacheStore) Del(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache del %q failed: %w", key, err)
	}
	return nil
}

// Keys returns all keys under the given prefix using SCAN, so large
// keyspaces are walked incrementally instead of blocking the server.
func (s *CacheStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := s.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("cache scan %q failed: %w", prefix, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
