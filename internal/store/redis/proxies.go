package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/store"
	"github.com/redis/go-redis/v9"
)

// ListProxies returns every proxy of a user in insertion order
func (s *Store) ListProxies(ctx context.Context, userKey string) ([]*domain.Proxy, error) {
	ids, err := s.client.LRange(ctx, UserProxiesKey(userKey), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get proxy IDs: %w", err)
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = ProxyKey(id)
	}
	return getMany[domain.Proxy](ctx, s.client, keys)
}

// ListActiveProxies returns the proxies taking part in rotation
func (s *Store) ListActiveProxies(ctx context.Context, userKey string) ([]*domain.Proxy, error) {
	all, err := s.ListProxies(ctx, userKey)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, p := range all {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

// AddProxy stores a proxy and appends it to the user's list
func (s *Store) AddProxy(ctx context.Context, p *domain.Proxy) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal proxy: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ProxyKey(p.ID), data, 0)
		pipe.RPush(ctx, UserProxiesKey(p.UserKey), p.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save proxy: %w", err)
	}
	return nil
}

// MarkUsed stamps the proxy's last-used time. Read-modify-write: two runs
// racing here may both pick the same proxy, which rotation tolerates.
func (s *Store) MarkUsed(ctx context.Context, id string, at time.Time) error {
	return s.updateProxy(ctx, "", id, func(p *domain.Proxy) {
		p.LastUsedAt = &at
		p.UpdatedAt = at
	})
}

// SetProxyActive soft-removes or re-enables a proxy
func (s *Store) SetProxyActive(ctx context.Context, userKey, id string, active bool) error {
	return s.updateProxy(ctx, userKey, id, func(p *domain.Proxy) {
		p.Active = active
		p.UpdatedAt = s.now()
	})
}

// DeleteProxy hard-deletes a proxy
func (s *Store) DeleteProxy(ctx context.Context, userKey, id string) error {
	var p domain.Proxy
	if err := s.getJSON(ctx, ProxyKey(id), &p); err != nil {
		return fmt.Errorf("proxy %s: %w", id, err)
	}
	if p.UserKey != userKey {
		return fmt.Errorf("proxy %s: %w", id, store.ErrNotFound)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ProxyKey(id))
		pipe.LRem(ctx, UserProxiesKey(userKey), 0, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete proxy: %w", err)
	}
	return nil
}

// CountProxies returns how many proxies a user owns, active or not
func (s *Store) CountProxies(ctx context.Context, userKey string) (int, error) {
	n, err := s.client.LLen(ctx, UserProxiesKey(userKey)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count proxies: %w", err)
	}
	return int(n), nil
}

// updateProxy applies fn to a stored proxy. An empty userKey skips the
// ownership check.
func (s *Store) updateProxy(ctx context.Context, userKey, id string, fn func(*domain.Proxy)) error {
	var p domain.Proxy
	if err := s.getJSON(ctx, ProxyKey(id), &p); err != nil {
		return fmt.Errorf("proxy %s: %w", id, err)
	}
	if userKey != "" && p.UserKey != userKey {
		return fmt.Errorf("proxy %s: %w", id, store.ErrNotFound)
	}
	fn(&p)
	return s.setJSON(ctx, ProxyKey(id), &p)
}
