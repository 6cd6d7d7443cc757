package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
	"github.com/MrSnakeDoc/playwatch/internal/registry"
)

// Report counts what an import changed.
type Report struct {
	Users     int
	Targets   int
	Proxies   int
	Schedules int
	Skipped   int // invalid, duplicate or over-limit entries
}

// Importer applies a seed file through the registry, so caps, validation
// and de-duplication match what users get from chat. Importing the same
// file twice changes nothing the second time.
type Importer struct {
	registry *registry.Service
	logger   logger.Logger
}

func NewImporter(reg *registry.Service, log logger.Logger) *Importer {
	return &Importer{registry: reg, logger: log}
}

// Import applies f. Invalid entries are skipped and logged; only backend
// failures abort.
func (im *Importer) Import(ctx context.Context, f *File) (Report, error) {
	var rep Report
	for _, u := range f.Users {
		if err := im.importUser(ctx, u, &rep); err != nil {
			return rep, fmt.Errorf("seed user %s: %w", u.Key, err)
		}
	}

	im.logger.Info("seed imported",
		logger.Int("users", rep.Users),
		logger.Int("targets", rep.Targets),
		logger.Int("proxies", rep.Proxies),
		logger.Int("schedules", rep.Schedules),
		logger.Int("skipped", rep.Skipped))
	return rep, nil
}

func (im *Importer) importUser(ctx context.Context, u User, rep *Report) error {
	key := strings.TrimSpace(u.Key)
	if _, err := im.registry.EnsureUser(ctx, key, domain.Profile{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}); err != nil {
		return err
	}
	rep.Users++

	if len(u.Links) > 0 {
		res, err := im.registry.AddTargets(ctx, key, u.Links)
		if err != nil && !errors.Is(err, registry.ErrLimitReached) {
			return err
		}
		rep.Targets += len(res.Added)
		rep.Skipped += len(res.Duplicates) + len(res.Invalid) + len(res.OverLimit)
	}

	if err := im.importProxies(ctx, key, u, rep); err != nil {
		return err
	}

	for _, raw := range u.Schedules {
		before, err := im.registry.ListSchedules(ctx, key)
		if err != nil {
			return err
		}
		sc, err := im.registry.AddSchedule(ctx, key, raw)
		switch {
		case errors.Is(err, domain.ErrInvalidTime), errors.Is(err, registry.ErrLimitReached):
			im.logger.Warn("seed schedule skipped",
				logger.String("user", key),
				logger.String("time", raw),
				logger.Error(err))
			rep.Skipped++
		case err != nil:
			return err
		case hasSchedule(before, sc.Time):
			rep.Skipped++
		default:
			rep.Schedules++
		}
	}
	return nil
}

// importProxies skips lines already registered (same address and user
// name), which the registry alone does not de-duplicate.
func (im *Importer) importProxies(ctx context.Context, key string, u User, rep *Report) error {
	if len(u.Proxies) == 0 {
		return nil
	}

	var typ domain.ProxyType
	if u.ProxyType != "" {
		t, err := domain.ParseProxyType(u.ProxyType)
		if err != nil {
			im.logger.Warn("seed proxies skipped", logger.String("user", key), logger.Error(err))
			rep.Skipped += len(u.Proxies)
			return nil
		}
		typ = t
	}

	existing, err := im.registry.ListProxies(ctx, key)
	if err != nil {
		return err
	}
	known := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		known[proxyIdentity(p)] = struct{}{}
	}

	fresh := make([]string, 0, len(u.Proxies))
	for _, line := range u.Proxies {
		p, err := domain.ParseProxyLine(line, im.batchType(typ))
		if err != nil {
			rep.Skipped++
			continue
		}
		id := proxyIdentity(p)
		if _, dup := known[id]; dup {
			rep.Skipped++
			continue
		}
		known[id] = struct{}{}
		fresh = append(fresh, line)
	}
	if len(fresh) == 0 {
		return nil
	}

	res, err := im.registry.AddProxies(ctx, key, fresh, typ)
	if err != nil && !errors.Is(err, registry.ErrLimitReached) {
		return err
	}
	rep.Proxies += len(res.Added)
	rep.Skipped += len(res.Invalid) + len(res.OverLimit)
	return nil
}

func (im *Importer) batchType(typ domain.ProxyType) domain.ProxyType {
	if typ != "" {
		return typ
	}
	return im.registry.DefaultProxyType()
}

func proxyIdentity(p *domain.Proxy) string {
	return strings.ToLower(string(p.Type) + "|" + p.Addr() + "|" + p.Username)
}

func hasSchedule(list []*domain.Schedule, clock string) bool {
	for _, sc := range list {
		if sc.Time == clock && sc.Active {
			return true
		}
	}
	return false
}
