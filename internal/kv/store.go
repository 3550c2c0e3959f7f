package kv

import (
	"context"
	"time"
)

// Store represents durable key-value storage shared across the application.
// A zero or negative TTL means the entry persists until overwritten or deleted.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}
