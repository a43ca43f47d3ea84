// Package notify sends operator alerts to a Telegram chat.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"captionbot/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const telegramMaxMsgLen = 4000

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	Token    string
	ChatID   int64
	Endpoint string       // defaults to tgbotapi.APIEndpoint
	Client   *http.Client // defaults to a client with a 15s timeout
	Logger   *slog.Logger
}

// Telegram posts alerts to one chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewTelegram connects to the Bot API and verifies the token.
func NewTelegram(cfg TelegramConfig) (*Telegram, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	cfg.Logger.Info("telegram notifier connected", "username", bot.Self.UserName, "chat_id", cfg.ChatID)
	return &Telegram{bot: bot, chatID: cfg.ChatID, logger: cfg.Logger}, nil
}

// Notify sends text, truncated to Telegram's message limit.
func (t *Telegram) Notify(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r := []rune(text); len(r) > telegramMaxMsgLen {
		text = string(r[:telegramMaxMsgLen-1]) + "…"
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// DescribeState renders a run-state transition for an alert.
func DescribeState(s domain.RunState) string {
	if s.Active {
		return "captionbot resumed posting"
	}
	return fmt.Sprintf("captionbot muted until %s UTC", s.ResumeAt.UTC().Format("2006-01-02 15:04:05"))
}
