// Package notification delivers fired alerts to their destination chat,
// throttled by a token bucket and retried on transient failures.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/raykavin/alertnrun/pkg/core"
)

// Telegram implements core.Messenger against a single destination chat.
// The bot is send-only; no poller is attached.
type telegram struct {
	client *tb.Bot
	chatID int64
}

// Option is a function that configures a telegram instance
type Option func(telegram *telegram)

// NewTelegram creates a Telegram messenger. The token is validated against
// the API at construction time.
func NewTelegram(token string, chatID int64, options ...Option) (core.Messenger, error) {
	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     token,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	messenger := &telegram{
		client: client,
		chatID: chatID,
	}

	for _, option := range options {
		option(messenger)
	}

	log.WithField("chat_id", chatID).Info("telegram messenger ready")
	return messenger, nil
}

// Send delivers one message to the configured chat. Telegram flood control
// responses are surfaced as core.RateLimitError so the dispatcher can honor
// the server's retry-after.
func (t *telegram) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := t.client.Send(&tb.Chat{ID: t.chatID}, text)
	if err != nil {
		var flood tb.FloodError
		if errors.As(err, &flood) {
			return &core.RateLimitError{RetryAfter: time.Duration(flood.RetryAfter) * time.Second}
		}
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	return nil
}
