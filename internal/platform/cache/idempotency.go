package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore caches serialized responses keyed by a hashed
// Idempotency-Key so retried POSTs replay the original result.
type IdempotencyStore struct {
	rdb    *redis.Client
	prefix string
}

func NewIdempotencyStore(rdb *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, prefix: "idem:"}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return v, err
}

func (s *IdempotencyStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, s.prefix+key, value, ttl).Err()
}
