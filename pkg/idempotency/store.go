package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a redis-backed duplicate suppressor for gateway settlement
// events. It is a fast path only; the durable dedup lives in the
// payment_events table, so redis losing a key costs one reprocess, never a
// double-apply.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(rawEventID string) string {
	return fmt.Sprintf("settlement:%s", rawEventID)
}

func (s *Store) Seen(ctx context.Context, rawEventID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key(rawEventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) Mark(ctx context.Context, rawEventID string) error {
	return s.rdb.Set(ctx, key(rawEventID), "1", s.ttl).Err()
}
