// Package notify delivers run notices to users.
package notify

import (
	"context"
	"sync/atomic"

	"github.com/MrSnakeDoc/playwatch/internal/logger"
)

// Handle identifies a delivered message so it can be edited later.
type Handle struct {
	UserKey   string
	MessageID int
}

// Sink is the messaging side of a run. Both calls may fail; callers log
// the error and carry on.
type Sink interface {
	Notify(ctx context.Context, userKey, text string) (Handle, error)
	Update(ctx context.Context, h Handle, text string) error
}

// LogSink writes notices to the log. Used when no messaging transport is
// configured and by the one-shot `check` command.
type LogSink struct {
	log  logger.Logger
	next atomic.Int64
}

func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, userKey, text string) (Handle, error) {
	id := int(s.next.Add(1))
	s.log.Info("notice",
		logger.String("user", userKey),
		logger.Int("message_id", id),
		logger.String("text", text))
	return Handle{UserKey: userKey, MessageID: id}, nil
}

func (s *LogSink) Update(_ context.Context, h Handle, text string) error {
	s.log.Info("notice updated",
		logger.String("user", h.UserKey),
		logger.Int("message_id", h.MessageID),
		logger.String("text", text))
	return nil
}
