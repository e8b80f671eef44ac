// internal/telegram/notifier.go
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/commentflow/internal/types"
)

const maxTelegramMessage = 4096

// Notifier sends operator alerts to a Telegram chat.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// New creates a Telegram notifier for the given bot token and chat.
func New(token string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Notifier{bot: bot, chatID: chatID}, nil
}

// NotifyOperator delivers the summary to the operator chat, splitting long
// messages at Telegram's size limit.
func (n *Notifier) NotifyOperator(ctx context.Context, summary string) error {
	for _, part := range splitMessage(summary) {
		msg := tgbotapi.NewMessage(n.chatID, part)
		if _, err := n.bot.Send(msg); err != nil {
			return &types.TransientError{Op: "telegram send", Err: err}
		}
	}
	return nil
}

func splitMessage(text string) []string {
	if len(text) <= maxTelegramMessage {
		return []string{text}
	}
	var parts []string
	for len(text) > 0 {
		end := maxTelegramMessage
		if end > len(text) {
			end = len(text)
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
