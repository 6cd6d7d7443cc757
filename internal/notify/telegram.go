package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the subset of *tgbotapi.BotAPI used here.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramSink addresses users by chat id: a user key is the decimal
// Telegram chat id.
type TelegramSink struct {
	api Sender
}

func NewTelegramSink(api Sender) *TelegramSink {
	return &TelegramSink{api: api}
}

func (s *TelegramSink) Notify(_ context.Context, userKey, text string) (Handle, error) {
	chatID, err := ChatID(userKey)
	if err != nil {
		return Handle{}, err
	}
	msg, err := s.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return Handle{}, fmt.Errorf("telegram send: %w", err)
	}
	return Handle{UserKey: userKey, MessageID: msg.MessageID}, nil
}

func (s *TelegramSink) Update(_ context.Context, h Handle, text string) error {
	chatID, err := ChatID(h.UserKey)
	if err != nil {
		return err
	}
	if _, err := s.api.Request(tgbotapi.NewEditMessageText(chatID, h.MessageID, text)); err != nil {
		// Editing to identical text is rejected by Telegram; nothing to do.
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("telegram edit: %w", err)
	}
	return nil
}

// ChatID parses a user key into a Telegram chat id.
func ChatID(userKey string) (int64, error) {
	id, err := strconv.ParseInt(userKey, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user key %q is not a telegram chat id", userKey)
	}
	return id, nil
}
