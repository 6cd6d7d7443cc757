// Package redis is the primary store.Store backend.
//
// Entities are JSON documents; per-user lists keep insertion order, hashes
// enforce the (user, package) and (user, time) uniqueness rules, and one set
// per "HH:MM" answers the scheduler's due-user query in a single SMEMBERS.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/store"
	"github.com/redis/go-redis/v9"
)

// Store handles Redis operations for every playwatch entity
type Store struct {
	client *redis.Client
	now    func() time.Time
}

var _ store.Store = (*Store)(nil)

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		now:    time.Now,
	}
}

// Ping reports whether Redis answers, used by readiness checks
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.ErrNotFound
		}
		return fmt.Errorf("failed to get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// getMany fetches JSON documents by key in one MGET, skipping missing ones
func getMany[T any](ctx context.Context, c *redis.Client, keys []string) ([]*T, error) {
	if len(keys) == 0 {
		return []*T{}, nil
	}
	vals, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to mget: %w", err)
	}
	out := make([]*T, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Skip entries that vanished between index read and fetch
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keys[i], err)
		}
		out = append(out, &item)
	}
	return out, nil
}
