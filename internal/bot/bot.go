// Package bot serves the Telegram command interface over long polling.
package bot

import (
	"context"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MrSnakeDoc/playwatch/internal/checker"
	"github.com/MrSnakeDoc/playwatch/internal/domain"
	"github.com/MrSnakeDoc/playwatch/internal/logger"
	"github.com/MrSnakeDoc/playwatch/internal/registry"
)

// API is the subset of *tgbotapi.BotAPI the bot needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Runner starts a check run on demand.
type Runner interface {
	RunWith(ctx context.Context, userKey string, opts checker.Options) (checker.Summary, error)
}

type Config struct {
	ChunkSize int
	Location  *time.Location
}

type Bot struct {
	api      API
	registry *registry.Service
	runner   Runner
	cfg      Config
	logger   logger.Logger

	handlers sync.WaitGroup
}

func New(api API, reg *registry.Service, runner Runner, cfg Config, log logger.Logger) *Bot {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 4000
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Bot{
		api:      api,
		registry: reg,
		runner:   runner,
		cfg:      cfg,
		logger:   log,
	}
}

// Run polls for updates until ctx is done. Each message is handled on
// its own goroutine so a long /check never blocks other users.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot polling started")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.handlers.Wait()
			b.logger.Info("telegram bot polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.handlers.Wait()
				return nil
			}
			if update.Message == nil {
				continue
			}
			b.handlers.Add(1)
			go func() {
				defer b.handlers.Done()
				b.Handle(ctx, update)
			}()
		}
	}
}

// Handle dispatches one update. Panics are contained to the update.
func (b *Bot) Handle(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID
	key := strconv.FormatInt(chatID, 10)

	defer func() {
		if rec := recover(); rec != nil {
			b.logger.Error("command handler panicked",
				logger.String("user", key),
				logger.Any("panic", rec))
			b.reply(chatID, msgInternalError)
		}
	}()

	if _, err := b.registry.EnsureUser(ctx, key, profile(msg.From)); err != nil {
		b.logger.Error("failed to register user", logger.String("user", key), logger.Error(err))
		b.reply(chatID, msgInternalError)
		return
	}

	if !msg.IsCommand() {
		b.reply(chatID, msgUnknown)
		return
	}

	cmd := msg.Command()
	args := msg.CommandArguments()

	b.logger.Debug("command received",
		logger.String("user", key),
		logger.String("command", cmd))

	switch cmd {
	case "start", "help":
		b.reply(chatID, msgHelp)
	case "add":
		b.addTargets(ctx, chatID, key, args)
	case "links", "list":
		b.listTargets(ctx, chatID, key)
	case "remove":
		b.removeTarget(ctx, chatID, key, args)
	case "proxies":
		b.listProxies(ctx, chatID, key)
	case "addproxy":
		b.addProxies(ctx, chatID, key, args)
	case "proxyoff":
		b.setProxy(ctx, chatID, key, args, false)
	case "proxyon":
		b.setProxy(ctx, chatID, key, args, true)
	case "delproxy":
		b.deleteProxy(ctx, chatID, key, args)
	case "schedule":
		b.addSchedule(ctx, chatID, key, args)
	case "unschedule":
		b.removeSchedule(ctx, chatID, key, args)
	case "schedules":
		b.listSchedules(ctx, chatID, key)
	case "check":
		b.check(ctx, chatID, key, true)
	case "checkdirect":
		b.check(ctx, chatID, key, false)
	case "status":
		b.status(ctx, chatID, key)
	default:
		b.reply(chatID, msgUnknown)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("failed to send reply",
			logger.Int64("chat", chatID),
			logger.Error(err))
	}
}

// replyAll sends each chunk as its own message, in order.
func (b *Bot) replyAll(chatID int64, chunks []string) {
	for _, c := range chunks {
		b.reply(chatID, c)
	}
}

func profile(u *tgbotapi.User) (p domain.Profile) {
	if u == nil {
		return p
	}
	p.Username = u.UserName
	p.FirstName = u.FirstName
	p.LastName = u.LastName
	return p
}
