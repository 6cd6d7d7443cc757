// Package memory is an in-process store.Store used by tests and by
// single-node deployments started with PLAYWATCH_STORE=memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/store"
)

// Store keeps every entity in maps guarded by one RWMutex. Records are
// copied in and out so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	users map[string]*domain.User // key -> user

	targets     map[string]*domain.Target // id -> target
	userTargets map[string][]string       // user key -> target ids, insertion order

	proxies     map[string]*domain.Proxy // id -> proxy
	userProxies map[string][]string      // user key -> proxy ids, insertion order

	schedules map[string]map[string]*domain.Schedule // user key -> "HH:MM" -> schedule

	results map[string][]*domain.CheckResult // target id -> results, oldest first

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty memory store.
func New() *Store {
	return &Store{
		users:       make(map[string]*domain.User),
		targets:     make(map[string]*domain.Target),
		userTargets: make(map[string][]string),
		proxies:     make(map[string]*domain.Proxy),
		userProxies: make(map[string][]string),
		schedules:   make(map[string]map[string]*domain.Schedule),
		results:     make(map[string][]*domain.CheckResult),
		now:         time.Now,
	}
}

// ─────────────────────────────
// Users
// ─────────────────────────────

func (s *Store) EnsureUser(_ context.Context, key string, p domain.Profile) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[key]
	if !ok {
		u = &domain.User{Key: key}
		s.users[key] = u
	}
	u.Apply(p, s.now())
	cp := *u
	return &cp, nil
}

func (s *Store) GetUser(_ context.Context, key string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[key]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", key, store.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

// ─────────────────────────────
// Targets
// ─────────────────────────────

func (s *Store) ListTargets(_ context.Context, userKey string) ([]*domain.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userTargets[userKey]
	out := make([]*domain.Target, 0, len(ids))
	for _, id := range ids {
		cp := *s.targets[id]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) AddTarget(_ context.Context, t *domain.Target) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.userTargets[t.UserKey] {
		if s.targets[id].PackageName == t.PackageName {
			return false, nil
		}
	}
	cp := *t
	s.targets[t.ID] = &cp
	s.userTargets[t.UserKey] = append(s.userTargets[t.UserKey], t.ID)
	return true, nil
}

func (s *Store) UpdateTarget(_ context.Context, t *domain.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.targets[t.ID]; !ok {
		return fmt.Errorf("target %s: %w", t.ID, store.ErrNotFound)
	}
	cp := *t
	s.targets[t.ID] = &cp
	return nil
}

func (s *Store) DeleteTarget(_ context.Context, userKey, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.targets[id]
	if !ok || t.UserKey != userKey {
		return fmt.Errorf("target %s: %w", id, store.ErrNotFound)
	}
	delete(s.targets, id)
	s.userTargets[userKey] = without(s.userTargets[userKey], id)
	return nil
}

func (s *Store) CountTargets(_ context.Context, userKey string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.userTargets[userKey]), nil
}

// ─────────────────────────────
// Proxies
// ─────────────────────────────

func (s *Store) ListProxies(_ context.Context, userKey string) ([]*domain.Proxy, error) {
	return s.listProxies(userKey, false), nil
}

func (s *Store) ListActiveProxies(_ context.Context, userKey string) ([]*domain.Proxy, error) {
	return s.listProxies(userKey, true), nil
}

func (s *Store) listProxies(userKey string, activeOnly bool) []*domain.Proxy {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.userProxies[userKey]
	out := make([]*domain.Proxy, 0, len(ids))
	for _, id := range ids {
		p := s.proxies[id]
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, cloneProxy(p))
	}
	return out
}

func (s *Store) AddProxy(_ context.Context, p *domain.Proxy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.proxies[p.ID] = cloneProxy(p)
	s.userProxies[p.UserKey] = append(s.userProxies[p.UserKey], p.ID)
	return nil
}

func (s *Store) MarkUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proxies[id]
	if !ok {
		return fmt.Errorf("proxy %s: %w", id, store.ErrNotFound)
	}
	p.LastUsedAt = &at
	p.UpdatedAt = at
	return nil
}

func (s *Store) SetProxyActive(_ context.Context, userKey, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proxies[id]
	if !ok || p.UserKey != userKey {
		return fmt.Errorf("proxy %s: %w", id, store.ErrNotFound)
	}
	p.Active = active
	p.UpdatedAt = s.now()
	return nil
}

func (s *Store) DeleteProxy(_ context.Context, userKey, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proxies[id]
	if !ok || p.UserKey != userKey {
		return fmt.Errorf("proxy %s: %w", id, store.ErrNotFound)
	}
	delete(s.proxies, id)
	s.userProxies[userKey] = without(s.userProxies[userKey], id)
	return nil
}

func (s *Store) CountProxies(_ context.Context, userKey string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.userProxies[userKey]), nil
}

// ─────────────────────────────
// Schedules
// ─────────────────────────────

func (s *Store) ListUsersWithActiveScheduleAt(_ context.Context, clock string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key, byTime := range s.schedules {
		if sc, ok := byTime[clock]; ok && sc.Active {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) ListSchedules(_ context.Context, userKey string) ([]*domain.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byTime := s.schedules[userKey]
	out := make([]*domain.Schedule, 0, len(byTime))
	for _, sc := range byTime {
		cp := *sc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (s *Store) PutSchedule(_ context.Context, sc *domain.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTime, ok := s.schedules[sc.UserKey]
	if !ok {
		byTime = make(map[string]*domain.Schedule)
		s.schedules[sc.UserKey] = byTime
	}
	cp := *sc
	byTime[sc.Time] = &cp
	return nil
}

func (s *Store) DeleteSchedule(_ context.Context, userKey, clock string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTime := s.schedules[userKey]
	if _, ok := byTime[clock]; !ok {
		return fmt.Errorf("schedule %s: %w", clock, store.ErrNotFound)
	}
	delete(byTime, clock)
	return nil
}

// ─────────────────────────────
// Results
// ─────────────────────────────

func (s *Store) AppendResult(_ context.Context, r *domain.CheckResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.results[r.TargetID] = append(s.results[r.TargetID], &cp)
	return nil
}

func (s *Store) LatestResults(_ context.Context, targetIDs []string) (map[string]*domain.CheckResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.CheckResult, len(targetIDs))
	for _, id := range targetIDs {
		rs := s.results[id]
		if len(rs) == 0 {
			continue
		}
		cp := *rs[len(rs)-1]
		out[id] = &cp
	}
	return out, nil
}

func (s *Store) DeleteResults(_ context.Context, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, targetID)
	return nil
}

// Results returns the full history of a target, oldest first.
func (s *Store) Results(targetID string) []*domain.CheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs := s.results[targetID]
	out := make([]*domain.CheckResult, len(rs))
	for i, r := range rs {
		cp := *r
		out[i] = &cp
	}
	return out
}

func cloneProxy(p *domain.Proxy) *domain.Proxy {
	cp := *p
	if p.LastUsedAt != nil {
		t := *p.LastUsedAt
		cp.LastUsedAt = &t
	}
	return &cp
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
