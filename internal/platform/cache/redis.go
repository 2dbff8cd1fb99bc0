// Package cache provides the optional secondary cache shared by the
// repositories, keyed by entity type. The storage core runs fully without it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client and verifies connectivity.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// Store is a nil-safe snapshot cache. Every method degrades to a no-op or a
// miss when the client is absent or redis is unreachable; the primary store
// stays the source of truth.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore wraps client. A nil client yields a disabled store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func entityKey(entity string) string {
	return "stockpoint:cache:" + entity
}

// PutSnapshot serialises value under the entity key.
func (s *Store) PutSnapshot(ctx context.Context, entity string, value any) {
	if s == nil || s.client == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = s.client.Set(ctx, entityKey(entity), data, s.ttl).Err()
}

// GetSnapshot unmarshals the cached snapshot into out, reporting a hit.
func (s *Store) GetSnapshot(ctx context.Context, entity string, out any) bool {
	if s == nil || s.client == nil {
		return false
	}
	data, err := s.client.Get(ctx, entityKey(entity)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// Invalidate drops the cached snapshot for entity.
func (s *Store) Invalidate(ctx context.Context, entity string) {
	if s == nil || s.client == nil {
		return
	}
	_ = s.client.Del(ctx, entityKey(entity)).Err()
}
