// Package store declares the persistence contracts consumed by the check
// engine and the management layer. Backends live in sub-packages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
)

// ErrNotFound is returned when an entity lookup misses.
var ErrNotFound = errors.New("not found")

type UserStore interface {
	// EnsureUser creates the user on first interaction and refreshes the
	// profile on later ones.
	EnsureUser(ctx context.Context, key string, p domain.Profile) (*domain.User, error)
	GetUser(ctx context.Context, key string) (*domain.User, error)
}

type TargetStore interface {
	// ListTargets returns the user's targets in insertion order.
	ListTargets(ctx context.Context, userKey string) ([]*domain.Target, error)
	// AddTarget stores t unless the user already owns a target with the same
	// package name. created reports whether a new record was written.
	AddTarget(ctx context.Context, t *domain.Target) (created bool, err error)
	UpdateTarget(ctx context.Context, t *domain.Target) error
	DeleteTarget(ctx context.Context, userKey, id string) error
	CountTargets(ctx context.Context, userKey string) (int, error)
}

type ProxyStore interface {
	// ListProxies returns every proxy of the user, active or not, in
	// insertion order.
	ListProxies(ctx context.Context, userKey string) ([]*domain.Proxy, error)
	ListActiveProxies(ctx context.Context, userKey string) ([]*domain.Proxy, error)
	AddProxy(ctx context.Context, p *domain.Proxy) error
	MarkUsed(ctx context.Context, id string, at time.Time) error
	SetProxyActive(ctx context.Context, userKey, id string, active bool) error
	DeleteProxy(ctx context.Context, userKey, id string) error
	CountProxies(ctx context.Context, userKey string) (int, error)
}

type ScheduleStore interface {
	// ListUsersWithActiveScheduleAt returns the keys of users owning an
	// active schedule at clock ("HH:MM").
	ListUsersWithActiveScheduleAt(ctx context.Context, clock string) ([]string, error)
	ListSchedules(ctx context.Context, userKey string) ([]*domain.Schedule, error)
	// PutSchedule upserts by (user, time).
	PutSchedule(ctx context.Context, s *domain.Schedule) error
	DeleteSchedule(ctx context.Context, userKey, clock string) error
}

type ResultStore interface {
	// AppendResult is append-only: results are never updated.
	AppendResult(ctx context.Context, r *domain.CheckResult) error
	// LatestResults returns the most recent result per target id. Targets
	// that were never checked are absent from the map.
	LatestResults(ctx context.Context, targetIDs []string) (map[string]*domain.CheckResult, error)
	// DeleteResults drops the history of a removed target.
	DeleteResults(ctx context.Context, targetID string) error
}

// Store bundles every entity store of one backend.
type Store interface {
	UserStore
	TargetStore
	ProxyStore
	ScheduleStore
	ResultStore
}

type composite struct {
	Store
	results ResultStore
}

// WithResults returns base with its result methods served by results.
// Used to keep entities in Redis while archiving results elsewhere.
func WithResults(base Store, results ResultStore) Store {
	if results == nil {
		return base
	}
	return &composite{Store: base, results: results}
}

func (c *composite) AppendResult(ctx context.Context, r *domain.CheckResult) error {
	return c.results.AppendResult(ctx, r)
}

func (c *composite) LatestResults(ctx context.Context, targetIDs []string) (map[string]*domain.CheckResult, error) {
	return c.results.LatestResults(ctx, targetIDs)
}

func (c *composite) DeleteResults(ctx context.Context, targetID string) error {
	return c.results.DeleteResults(ctx, targetID)
}
