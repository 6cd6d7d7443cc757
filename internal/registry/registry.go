// Package registry is the management layer users talk to: it validates
// input, enforces per-user caps and de-duplication, and resolves the
// list references users type ("2", an id, a package name).
package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
	"github.com/MrSnakeDoc/playwatch/internal/store"
)

var (
	// ErrLimitReached is returned when a per-user cap is already used up.
	ErrLimitReached = errors.New("limit reached")
	// ErrNotFound is returned when a reference matches nothing the user owns.
	ErrNotFound = errors.New("no such entry")
)

// Limits are the per-user caps. Zero means unlimited.
type Limits struct {
	Targets   int
	Proxies   int
	Schedules int
}

// Service manages users' targets, proxies and schedules.
type Service struct {
	store            store.Store
	limits           Limits
	defaultProxyType domain.ProxyType
	now              func() time.Time
	logger           logger.Logger
}

// New creates a new registry service
func New(st store.Store, limits Limits, defaultProxyType domain.ProxyType, log logger.Logger) *Service {
	if defaultProxyType == "" {
		defaultProxyType = domain.ProxyHTTP
	}
	return &Service{
		store:            st,
		limits:           limits,
		defaultProxyType: defaultProxyType,
		now:              time.Now,
		logger:           log,
	}
}

// DefaultProxyType is the type applied to proxy lines without a scheme.
func (s *Service) DefaultProxyType() domain.ProxyType {
	return s.defaultProxyType
}

// EnsureUser registers the user on first contact.
func (s *Service) EnsureUser(ctx context.Context, key string, p domain.Profile) (*domain.User, error) {
	if strings.TrimSpace(key) == "" {
		return nil, errors.New("empty user key")
	}
	u, err := s.store.EnsureUser(ctx, key, p)
	if err != nil {
		return nil, fmt.Errorf("failed to register user %s: %w", key, err)
	}
	return u, nil
}

// ─────────────────────────────
// Targets
// ─────────────────────────────

// TargetsAdded reports the outcome of a bulk add.
type TargetsAdded struct {
	Added      []*domain.Target
	Duplicates []string // package names already registered
	Invalid    []string // input that is not an app link
	OverLimit  []string // valid links dropped because the cap was hit
}

// AddTargets registers every valid link in urls, in order, until the
// user's cap is reached. Links already registered are reported, not
// re-added. ErrLimitReached is only returned when nothing could be added
// because the cap was already used up.
func (s *Service) AddTargets(ctx context.Context, userKey string, urls []string) (TargetsAdded, error) {
	var res TargetsAdded

	existing, err := s.store.ListTargets(ctx, userKey)
	if err != nil {
		return res, fmt.Errorf("failed to list targets: %w", err)
	}
	count := len(existing)
	seen := make(map[string]struct{}, count)
	for _, t := range existing {
		seen[t.PackageName] = struct{}{}
	}

	now := s.now()
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		t, err := domain.NewTarget(userKey, raw, now)
		if err != nil {
			res.Invalid = append(res.Invalid, raw)
			continue
		}
		if _, dup := seen[t.PackageName]; dup {
			res.Duplicates = append(res.Duplicates, t.PackageName)
			continue
		}
		if s.limits.Targets > 0 && count >= s.limits.Targets {
			res.OverLimit = append(res.OverLimit, raw)
			continue
		}
		created, err := s.store.AddTarget(ctx, t)
		if err != nil {
			return res, fmt.Errorf("failed to add target %s: %w", t.PackageName, err)
		}
		if !created {
			res.Duplicates = append(res.Duplicates, t.PackageName)
			continue
		}
		seen[t.PackageName] = struct{}{}
		count++
		res.Added = append(res.Added, t)
	}

	if len(res.Added) == 0 && len(res.OverLimit) > 0 {
		return res, fmt.Errorf("%w: at most %d app links", ErrLimitReached, s.limits.Targets)
	}

	if len(res.Added) > 0 {
		s.logger.Info("targets added",
			logger.String("user", userKey),
			logger.Int("added", len(res.Added)),
			logger.Int("duplicates", len(res.Duplicates)),
			logger.Int("invalid", len(res.Invalid)))
	}
	return res, nil
}

// ListTargets returns the user's targets in insertion order.
func (s *Service) ListTargets(ctx context.Context, userKey string) ([]*domain.Target, error) {
	return s.store.ListTargets(ctx, userKey)
}

// RemoveTarget deletes the target referenced by ref (1-based list
// position, id or package name) together with its result history.
func (s *Service) RemoveTarget(ctx context.Context, userKey, ref string) (*domain.Target, error) {
	targets, err := s.store.ListTargets(ctx, userKey)
	if err != nil {
		return nil, err
	}
	t := resolve(targets, ref, func(t *domain.Target) []string {
		return []string{t.ID, t.PackageName, t.URL}
	})
	if t == nil {
		return nil, fmt.Errorf("%w: app link %q", ErrNotFound, ref)
	}

	if err := s.store.DeleteTarget(ctx, userKey, t.ID); err != nil {
		return nil, notFound(err)
	}
	if err := s.store.DeleteResults(ctx, t.ID); err != nil {
		s.logger.Warn("failed to drop result history",
			logger.String("user", userKey),
			logger.String("target", t.ID),
			logger.Error(err))
	}

	s.logger.Info("target removed",
		logger.String("user", userKey),
		logger.String("target", t.PackageName))
	return t, nil
}

// Status returns every target with its most recent result.
func (s *Service) Status(ctx context.Context, userKey string) ([]domain.LatestStatus, error) {
	targets, err := s.store.ListTargets(ctx, userKey)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, nil
	}

	ids := make([]string, len(targets))
	for i, t := range targets {
		ids[i] = t.ID
	}
	latest, err := s.store.LatestResults(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest results: %w", err)
	}

	out := make([]domain.LatestStatus, len(targets))
	for i, t := range targets {
		out[i] = domain.LatestStatus{Target: t, Result: latest[t.ID]}
	}
	return out, nil
}

// ─────────────────────────────
// Proxies
// ─────────────────────────────

// ProxiesAdded reports the outcome of a bulk proxy add.
type ProxiesAdded struct {
	Added     []*domain.Proxy
	Invalid   []string
	OverLimit []string
}

// AddProxies parses one proxy per line. Lines without a scheme get typ,
// or the service default when typ is empty.
func (s *Service) AddProxies(ctx context.Context, userKey string, lines []string, typ domain.ProxyType) (ProxiesAdded, error) {
	var res ProxiesAdded
	if typ == "" {
		typ = s.defaultProxyType
	}

	count, err := s.store.CountProxies(ctx, userKey)
	if err != nil {
		return res, fmt.Errorf("failed to count proxies: %w", err)
	}

	now := s.now()
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p, err := domain.ParseProxyLine(line, typ)
		if err != nil {
			res.Invalid = append(res.Invalid, line)
			continue
		}
		if s.limits.Proxies > 0 && count >= s.limits.Proxies {
			res.OverLimit = append(res.OverLimit, p.String())
			continue
		}
		p.ID = domain.NewID()
		p.UserKey = userKey
		p.CreatedAt = now
		p.UpdatedAt = now
		if err := s.store.AddProxy(ctx, p); err != nil {
			return res, fmt.Errorf("failed to add proxy %s: %w", p, err)
		}
		count++
		res.Added = append(res.Added, p)
	}

	if len(res.Added) == 0 && len(res.OverLimit) > 0 {
		return res, fmt.Errorf("%w: at most %d proxies", ErrLimitReached, s.limits.Proxies)
	}
	if len(res.Added) > 0 {
		s.logger.Info("proxies added",
			logger.String("user", userKey),
			logger.Int("added", len(res.Added)),
			logger.String("type", string(typ)))
	}
	return res, nil
}

// ListProxies returns every proxy of the user, active or not.
func (s *Service) ListProxies(ctx context.Context, userKey string) ([]*domain.Proxy, error) {
	return s.store.ListProxies(ctx, userKey)
}

// DeactivateProxy takes a proxy out of rotation without deleting it.
func (s *Service) DeactivateProxy(ctx context.Context, userKey, ref string) (*domain.Proxy, error) {
	return s.setProxyActive(ctx, userKey, ref, false)
}

// ActivateProxy puts a deactivated proxy back into rotation.
func (s *Service) ActivateProxy(ctx context.Context, userKey, ref string) (*domain.Proxy, error) {
	return s.setProxyActive(ctx, userKey, ref, true)
}

func (s *Service) setProxyActive(ctx context.Context, userKey, ref string, active bool) (*domain.Proxy, error) {
	p, err := s.findProxy(ctx, userKey, ref)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetProxyActive(ctx, userKey, p.ID, active); err != nil {
		return nil, notFound(err)
	}
	p.Active = active

	s.logger.Info("proxy state changed",
		logger.String("user", userKey),
		logger.String("proxy", p.String()),
		logger.Bool("active", active))
	return p, nil
}

// DeleteProxy removes a proxy for good.
func (s *Service) DeleteProxy(ctx context.Context, userKey, ref string) (*domain.Proxy, error) {
	p, err := s.findProxy(ctx, userKey, ref)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteProxy(ctx, userKey, p.ID); err != nil {
		return nil, notFound(err)
	}

	s.logger.Info("proxy deleted",
		logger.String("user", userKey),
		logger.String("proxy", p.String()))
	return p, nil
}

func (s *Service) findProxy(ctx context.Context, userKey, ref string) (*domain.Proxy, error) {
	proxies, err := s.store.ListProxies(ctx, userKey)
	if err != nil {
		return nil, err
	}
	p := resolve(proxies, ref, func(p *domain.Proxy) []string {
		return []string{p.ID, p.Addr()}
	})
	if p == nil {
		return nil, fmt.Errorf("%w: proxy %q", ErrNotFound, ref)
	}
	return p, nil
}

// ─────────────────────────────
// Schedules
// ─────────────────────────────

// AddSchedule registers a daily run at raw ("H:MM" or "HH:MM"). Adding a
// time that already exists reactivates it instead of creating a second
// entry, and does not count against the cap.
func (s *Service) AddSchedule(ctx context.Context, userKey, raw string) (*domain.Schedule, error) {
	clock, err := domain.NormalizeTime(raw)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.ListSchedules(ctx, userKey)
	if err != nil {
		return nil, err
	}

	now := s.now()
	for _, sc := range existing {
		if sc.Time != clock {
			continue
		}
		if sc.Active {
			return sc, nil
		}
		sc.Active = true
		sc.UpdatedAt = now
		if err := s.store.PutSchedule(ctx, sc); err != nil {
			return nil, fmt.Errorf("failed to reactivate schedule: %w", err)
		}
		s.logger.Info("schedule reactivated",
			logger.String("user", userKey),
			logger.String("time", clock))
		return sc, nil
	}

	if s.limits.Schedules > 0 && len(existing) >= s.limits.Schedules {
		return nil, fmt.Errorf("%w: at most %d schedules", ErrLimitReached, s.limits.Schedules)
	}

	sc := &domain.Schedule{
		ID:        domain.NewID(),
		UserKey:   userKey,
		Time:      clock,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.PutSchedule(ctx, sc); err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}

	s.logger.Info("schedule added",
		logger.String("user", userKey),
		logger.String("time", clock))
	return sc, nil
}

// RemoveSchedule deletes the schedule at raw.
func (s *Service) RemoveSchedule(ctx context.Context, userKey, raw string) error {
	clock, err := domain.NormalizeTime(raw)
	if err != nil {
		return err
	}
	if err := s.store.DeleteSchedule(ctx, userKey, clock); err != nil {
		return notFound(err)
	}
	s.logger.Info("schedule removed",
		logger.String("user", userKey),
		logger.String("time", clock))
	return nil
}

// ListSchedules returns the user's schedules ordered by time.
func (s *Service) ListSchedules(ctx context.Context, userKey string) ([]*domain.Schedule, error) {
	return s.store.ListSchedules(ctx, userKey)
}

// resolve finds the item ref points at: a 1-based position in items, or
// a value returned by keys.
func resolve[T any](items []T, ref string, keys func(T) []string) T {
	var zero T
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return zero
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n >= 1 && n <= len(items) {
			return items[n-1]
		}
		return zero
	}
	for _, it := range items {
		for _, k := range keys(it) {
			if strings.EqualFold(k, ref) {
				return it
			}
		}
	}
	return zero
}

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
