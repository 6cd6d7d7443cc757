package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/store"
	"github.com/redis/go-redis/v9"
)

// ListTargets returns a user's targets in insertion order
func (s *Store) ListTargets(ctx context.Context, userKey string) ([]*domain.Target, error) {
	ids, err := s.client.LRange(ctx, UserTargetsKey(userKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get target IDs: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = TargetKey(id)
	}
	return getMany[domain.Target](ctx, s.client, keys)
}

// AddTarget stores a target unless its package is already registered for
// the user. The HSETNX on the package hash is the uniqueness gate.
func (s *Store) AddTarget(ctx context.Context, t *domain.Target) (bool, error) {
	ok, err := s.client.HSetNX(ctx, UserTargetPackagesKey(t.UserKey), t.PackageName, t.ID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve package: %w", err)
	}
	if !ok {
		return false, nil
	}

	data, err := json.Marshal(t)
	if err != nil {
		return false, fmt.Errorf("failed to marshal target: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, TargetKey(t.ID), data, 0)
		pipe.RPush(ctx, UserTargetsKey(t.UserKey), t.ID)
		return nil
	})
	if err != nil {
		// Release the reservation so the user can retry
		s.client.HDel(ctx, UserTargetPackagesKey(t.UserKey), t.PackageName)
		return false, fmt.Errorf("failed to save target: %w", err)
	}
	return true, nil
}

// UpdateTarget overwrites an existing target record
func (s *Store) UpdateTarget(ctx context.Context, t *domain.Target) error {
	n, err := s.client.Exists(ctx, TargetKey(t.ID)).Result()
	if err != nil {
		return fmt.Errorf("failed to check target: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("target %s: %w", t.ID, store.ErrNotFound)
	}
	return s.setJSON(ctx, TargetKey(t.ID), t)
}

// DeleteTarget removes a target and its package reservation
func (s *Store) DeleteTarget(ctx context.Context, userKey, id string) error {
	var t domain.Target
	if err := s.getJSON(ctx, TargetKey(id), &t); err != nil {
		return fmt.Errorf("target %s: %w", id, err)
	}
	if t.UserKey != userKey {
		return fmt.Errorf("target %s: %w", id, store.ErrNotFound)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, TargetKey(id))
		pipe.LRem(ctx, UserTargetsKey(userKey), 0, id)
		pipe.HDel(ctx, UserTargetPackagesKey(userKey), t.PackageName)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete target: %w", err)
	}
	return nil
}

// CountTargets returns how many targets a user owns
func (s *Store) CountTargets(ctx context.Context, userKey string) (int, error) {
	n, err := s.client.LLen(ctx, UserTargetsKey(userKey)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count targets: %w", err)
	}
	return int(n), nil
}
