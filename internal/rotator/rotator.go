// Package rotator hands out a user's proxies least-recently-used first.
package rotator

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
)

// Store is the slice of the proxy store the rotator needs.
type Store interface {
	ListActiveProxies(ctx context.Context, userKey string) ([]*domain.Proxy, error)
	MarkUsed(ctx context.Context, id string, at time.Time) error
}

type Rotator struct {
	store Store
	now   func() time.Time
	log   logger.Logger
}

func New(store Store, log logger.Logger) *Rotator {
	return &Rotator{store: store, now: time.Now, log: log}
}

// Next returns the active proxy with the oldest LastUsedAt (never used
// first, ties in insertion order) and stamps it as used now. A nil proxy
// with a nil error means the user has no active proxy.
func (r *Rotator) Next(ctx context.Context, userKey string) (*domain.Proxy, error) {
	proxies, err := r.store.ListActiveProxies(ctx, userKey)
	if err != nil {
		return nil, fmt.Errorf("list proxies: %w", err)
	}

	p := pick(proxies)
	if p == nil {
		return nil, nil
	}

	now := r.now()
	if err := r.store.MarkUsed(ctx, p.ID, now); err != nil {
		// The proxy is still usable; rotation just loses one step.
		r.log.Warn("failed to mark proxy used",
			logger.String("user", userKey),
			logger.String("proxy", p.ID),
			logger.Error(err))
	}
	p.LastUsedAt = &now
	return p, nil
}

// pick is a stable scan, so on equal timestamps the earlier entry wins.
func pick(proxies []*domain.Proxy) *domain.Proxy {
	var best *domain.Proxy
	for _, p := range proxies {
		if !p.Active {
			continue
		}
		if best == nil || olderThan(p, best) {
			best = p
		}
	}
	return best
}

func olderThan(a, b *domain.Proxy) bool {
	switch {
	case a.LastUsedAt == nil:
		return b.LastUsedAt != nil
	case b.LastUsedAt == nil:
		return false
	default:
		return a.LastUsedAt.Before(*b.LastUsedAt)
	}
}
