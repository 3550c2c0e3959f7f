// Package cursor persists the sync watermark: the createdAt timestamp of the
// most recent insight already processed into a notification. The watermark is
// the boundary between insights that were handled and insights that may still
// need delivery, so it must survive process restarts and may only move forward.
package cursor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/keepstack/keepsync/internal/kv"
	apperrors "github.com/keepstack/keepsync/pkg/errors"
)

// Key is the storage key the serialized watermark lives under.
const Key = "sync:cursor"

// Store exposes the durable watermark. Get reports found=false when no cursor
// has ever been persisted (the first-run state).
type Store interface {
	Get(ctx context.Context) (time.Time, bool, error)
	Set(ctx context.Context, value time.Time) error
}

// KVStore persists the cursor through a durable key-value backend.
type KVStore struct {
	backend kv.Store
}

// NewKVStore constructs a cursor store on top of the supplied backend.
func NewKVStore(backend kv.Store) (*KVStore, error) {
	if backend == nil {
		return nil, errors.New("cursor store: backend is required")
	}
	return &KVStore{backend: backend}, nil
}

// Get reads the persisted watermark. A missing key is not an error.
func (s *KVStore) Get(ctx context.Context) (time.Time, bool, error) {
	raw, found, err := s.backend.Get(ctx, Key)
	if err != nil {
		return time.Time{}, false, apperrors.ErrPersistence.WithInternal(fmt.Errorf("cursor store: read: %w", err))
	}
	if !found || len(raw) == 0 {
		return time.Time{}, false, nil
	}

	value, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false, apperrors.ErrPersistence.WithInternal(fmt.Errorf("cursor store: parse %q: %w", raw, err))
	}
	return value, true, nil
}

// Set writes the watermark. Stored without expiry; the cursor must outlive any
// cache eviction policy.
func (s *KVStore) Set(ctx context.Context, value time.Time) error {
	if value.IsZero() {
		return apperrors.ErrPersistence.WithInternal(errors.New("cursor store: refusing to persist zero timestamp"))
	}

	raw := []byte(value.UTC().Format(time.RFC3339Nano))
	if err := s.backend.Set(ctx, Key, raw, 0); err != nil {
		return apperrors.ErrPersistence.WithInternal(fmt.Errorf("cursor store: write: %w", err))
	}
	return nil
}
