package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/playwatch/internal/checker"
	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
	"github.com/MrSnakeDoc/playwatch/internal/registry"
	"github.com/MrSnakeDoc/playwatch/internal/report"
)

// ─────────────────────────────
// App links
// ─────────────────────────────

func (b *Bot) addTargets(ctx context.Context, chatID int64, key, args string) {
	links := strings.Fields(args)
	if len(links) == 0 {
		b.reply(chatID, usageAdd)
		return
	}

	res, err := b.registry.AddTargets(ctx, key, links)
	if errors.Is(err, registry.ErrLimitReached) {
		b.reply(chatID, "🚫 You already have the maximum number of app links. Remove some first.")
		return
	}
	if err != nil {
		b.fail(chatID, key, "add targets", err)
		return
	}

	var sb strings.Builder
	if len(res.Added) > 0 {
		fmt.Fprintf(&sb, "✅ Added %d link(s).", len(res.Added))
	} else {
		sb.WriteString("Nothing added.")
	}
	if len(res.Duplicates) > 0 {
		fmt.Fprintf(&sb, "\n♻️ Already registered: %s", strings.Join(res.Duplicates, ", "))
	}
	if len(res.Invalid) > 0 {
		fmt.Fprintf(&sb, "\n⚠️ Not app links: %s", strings.Join(res.Invalid, ", "))
	}
	if len(res.OverLimit) > 0 {
		fmt.Fprintf(&sb, "\n🚫 Skipped, limit reached: %d link(s)", len(res.OverLimit))
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) listTargets(ctx context.Context, chatID int64, key string) {
	targets, err := b.registry.ListTargets(ctx, key)
	if err != nil {
		b.fail(chatID, key, "list targets", err)
		return
	}
	if len(targets) == 0 {
		b.reply(chatID, msgNoLinks)
		return
	}

	lines := make([]string, len(targets))
	for i, t := range targets {
		icon := "⚪"
		if t.LastActive != nil {
			icon = "❌"
			if *t.LastActive {
				icon = "✅"
			}
		}
		name := t.DisplayName()
		if t.AppName != "" {
			name = fmt.Sprintf("%s (%s)", t.AppName, name)
		}
		lines[i] = fmt.Sprintf("%d. %s %s", i+1, icon, name)
	}
	b.replyAll(chatID, report.Chunk(lines, b.cfg.ChunkSize, headerLinks))
}

func (b *Bot) removeTarget(ctx context.Context, chatID int64, key, args string) {
	ref := strings.TrimSpace(args)
	if ref == "" {
		b.reply(chatID, usageRemove)
		return
	}
	t, err := b.registry.RemoveTarget(ctx, key, ref)
	if errors.Is(err, registry.ErrNotFound) {
		b.reply(chatID, "🤷 No such link. See /links.")
		return
	}
	if err != nil {
		b.fail(chatID, key, "remove target", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("🗑️ Removed %s.", t.DisplayName()))
}

func (b *Bot) status(ctx context.Context, chatID int64, key string) {
	statuses, err := b.registry.Status(ctx, key)
	if err != nil {
		b.fail(chatID, key, "load status", err)
		return
	}
	if len(statuses) == 0 {
		b.reply(chatID, msgNoLinks)
		return
	}
	lines := report.StatusLines(statuses, b.cfg.Location)
	b.replyAll(chatID, report.Chunk(lines, b.cfg.ChunkSize, headerStatus))
}

// ─────────────────────────────
// Proxies
// ─────────────────────────────

// addProxies reads an optional type token followed by proxy lines.
func (b *Bot) addProxies(ctx context.Context, chatID int64, key, args string) {
	fields := strings.Fields(args)
	var typ domain.ProxyType
	if len(fields) > 0 && !strings.Contains(fields[0], ":") {
		t, err := domain.ParseProxyType(fields[0])
		if err != nil {
			b.reply(chatID, usageAddProxy)
			return
		}
		typ = t
		fields = fields[1:]
	}
	if len(fields) == 0 {
		b.reply(chatID, usageAddProxy)
		return
	}

	res, err := b.registry.AddProxies(ctx, key, fields, typ)
	if errors.Is(err, registry.ErrLimitReached) {
		b.reply(chatID, "🚫 You already have the maximum number of proxies. Delete some first.")
		return
	}
	if err != nil {
		b.fail(chatID, key, "add proxies", err)
		return
	}

	var sb strings.Builder
	if len(res.Added) > 0 {
		fmt.Fprintf(&sb, "✅ Added %d proxy(ies).", len(res.Added))
	} else {
		sb.WriteString("Nothing added.")
	}
	if len(res.Invalid) > 0 {
		fmt.Fprintf(&sb, "\n⚠️ Could not parse %d line(s).", len(res.Invalid))
	}
	if len(res.OverLimit) > 0 {
		fmt.Fprintf(&sb, "\n🚫 Skipped, limit reached: %d proxy(ies)", len(res.OverLimit))
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) listProxies(ctx context.Context, chatID int64, key string) {
	proxies, err := b.registry.ListProxies(ctx, key)
	if err != nil {
		b.fail(chatID, key, "list proxies", err)
		return
	}
	if len(proxies) == 0 {
		b.reply(chatID, msgNoProxies)
		return
	}

	lines := make([]string, len(proxies))
	for i, p := range proxies {
		state := "on"
		if !p.Active {
			state = "off"
		}
		used := "never used"
		if p.LastUsedAt != nil {
			used = "used " + p.LastUsedAt.In(b.cfg.Location).Format("2006-01-02 15:04")
		}
		lines[i] = fmt.Sprintf("%d. %s [%s, %s]", i+1, p, state, used)
	}
	b.replyAll(chatID, report.Chunk(lines, b.cfg.ChunkSize, headerProxies))
}

func (b *Bot) setProxy(ctx context.Context, chatID int64, key, args string, active bool) {
	ref := strings.TrimSpace(args)
	if ref == "" {
		cmd := "proxyoff"
		if active {
			cmd = "proxyon"
		}
		b.reply(chatID, fmt.Sprintf(usageProxyRef, cmd))
		return
	}

	var (
		p   *domain.Proxy
		err error
	)
	if active {
		p, err = b.registry.ActivateProxy(ctx, key, ref)
	} else {
		p, err = b.registry.DeactivateProxy(ctx, key, ref)
	}
	if errors.Is(err, registry.ErrNotFound) {
		b.reply(chatID, "🤷 No such proxy. See /proxies.")
		return
	}
	if err != nil {
		b.fail(chatID, key, "update proxy", err)
		return
	}

	if active {
		b.reply(chatID, fmt.Sprintf("🟢 %s is back in rotation.", p))
		return
	}
	b.reply(chatID, fmt.Sprintf("⏸️ %s taken out of rotation.", p))
}

func (b *Bot) deleteProxy(ctx context.Context, chatID int64, key, args string) {
	ref := strings.TrimSpace(args)
	if ref == "" {
		b.reply(chatID, fmt.Sprintf(usageProxyRef, "delproxy"))
		return
	}
	p, err := b.registry.DeleteProxy(ctx, key, ref)
	if errors.Is(err, registry.ErrNotFound) {
		b.reply(chatID, "🤷 No such proxy. See /proxies.")
		return
	}
	if err != nil {
		b.fail(chatID, key, "delete proxy", err)
		return
	}
	b.reply(chatID, fmt.Sprintf("🗑️ Deleted %s.", p))
}

// ─────────────────────────────
// Schedules
// ─────────────────────────────

func (b *Bot) addSchedule(ctx context.Context, chatID int64, key, args string) {
	raw := strings.TrimSpace(args)
	if raw == "" {
		b.reply(chatID, usageSchedule)
		return
	}
	sc, err := b.registry.AddSchedule(ctx, key, raw)
	switch {
	case errors.Is(err, domain.ErrInvalidTime):
		b.reply(chatID, "⚠️ Invalid time. "+usageSchedule)
	case errors.Is(err, registry.ErrLimitReached):
		b.reply(chatID, "🚫 You already have the maximum number of schedules.")
	case err != nil:
		b.fail(chatID, key, "add schedule", err)
	default:
		b.reply(chatID, fmt.Sprintf("⏰ I will check your links every day at %s.", sc.Time))
	}
}

func (b *Bot) removeSchedule(ctx context.Context, chatID int64, key, args string) {
	raw := strings.TrimSpace(args)
	if raw == "" {
		b.reply(chatID, usageUnschedule)
		return
	}
	err := b.registry.RemoveSchedule(ctx, key, raw)
	switch {
	case errors.Is(err, domain.ErrInvalidTime):
		b.reply(chatID, "⚠️ Invalid time. "+usageUnschedule)
	case errors.Is(err, registry.ErrNotFound):
		b.reply(chatID, "🤷 No schedule at that time. See /schedules.")
	case err != nil:
		b.fail(chatID, key, "remove schedule", err)
	default:
		b.reply(chatID, "🗑️ Schedule removed.")
	}
}

func (b *Bot) listSchedules(ctx context.Context, chatID int64, key string) {
	schedules, err := b.registry.ListSchedules(ctx, key)
	if err != nil {
		b.fail(chatID, key, "list schedules", err)
		return
	}
	if len(schedules) == 0 {
		b.reply(chatID, msgNoSchedules)
		return
	}
	lines := make([]string, len(schedules))
	for i, sc := range schedules {
		state := ""
		if !sc.Active {
			state = " (paused)"
		}
		lines[i] = fmt.Sprintf("%d. %s%s", i+1, sc.Time, state)
	}
	b.replyAll(chatID, report.Chunk(lines, b.cfg.ChunkSize, headerSchedule))
}

// ─────────────────────────────
// Checks
// ─────────────────────────────

// check runs synchronously; the runner itself reports progress and the
// final result through the messaging sink.
func (b *Bot) check(ctx context.Context, chatID int64, key string, useProxy bool) {
	sum, err := b.runner.RunWith(ctx, key, checker.Options{UseProxy: useProxy})
	if sum.Status == checker.StatusSkipped {
		b.reply(chatID, msgAlreadyRunning)
		return
	}
	if err != nil {
		b.logger.Warn("manual run failed",
			logger.String("user", key),
			logger.Error(err))
	}
}

func (b *Bot) fail(chatID int64, key, op string, err error) {
	b.logger.Error("command failed",
		logger.String("user", key),
		logger.String("op", op),
		logger.Error(err))
	b.reply(chatID, msgInternalError)
}
