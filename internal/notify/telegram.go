package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramChannel delivers messages to one chat via the Telegram Bot
// API, grounded on the retrieval pack's only Telegram integration
// (yohannesjx-sniperterminal's NotificationService: token from config,
// `tgbotapi.NewMessage` + `bot.Send`), generalized from that example's
// fire-and-forget goroutine into a synchronous `Send` the Notifier's
// own retry loop controls.
type TelegramChannel struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramChannel authenticates against the Telegram Bot API using
// the token and destination chat ID from
// `TELEGRAM_*` settings.
func NewTelegramChannel(token string, chatID int64) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram auth: %w", err)
	}
	return &TelegramChannel{bot: bot, chatID: chatID}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Send(ctx context.Context, msg Message) error {
	if c.chatID == 0 {
		return fmt.Errorf("notify: telegram chat id not configured")
	}
	cfg := tgbotapi.NewMessage(c.chatID, msg.Content)
	cfg.ParseMode = "Markdown"
	_, err := c.bot.Send(cfg)
	if err != nil {
		return fmt.Errorf("notify: telegram send: %w", err)
	}
	return nil
}
