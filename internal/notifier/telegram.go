package notifier

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender posts owner alerts to a fixed chat. It ignores client
// confirmations; those go over email.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSender authenticates the bot once at startup.
func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

// Send implements Sender for owner alerts.
func (t *TelegramSender) Send(ctx context.Context, kind Kind, f Fields) error {
	if kind != KindOwnerAlert {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	name := strings.TrimSpace(f.FirstName + " " + f.LastName)
	text := fmt.Sprintf("📅 New booking\n%s (%s)\n%s at %s", name, f.Email, f.SlotDate, f.SlotTime)
	if f.RemoteInterview {
		text += "\nRemote interview requested"
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	_, err := t.bot.Send(msg)
	return err
}
