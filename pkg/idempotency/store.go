package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Store struct {
	rdb        *redis.Client
	ttl        time.Duration
	pendingTTL time.Duration
}

type Option func(*Store)

// WithPendingTTL bounds how long an in-flight HTTP request holds its key
// before a retry may claim it again.
func WithPendingTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.pendingTTL = d
		}
	}
}

func NewStore(rdb *redis.Client, ttl time.Duration, opts ...Option) *Store {
	s := &Store{rdb: rdb, ttl: ttl, pendingTTL: 30 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

// Seen marks key as processed and reports whether somebody got there first.
func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// Forget drops key so the work it guarded can be attempted again.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
