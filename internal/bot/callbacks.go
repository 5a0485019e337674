package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	cmdMixer   = "mixer"
	cmdMix     = "mix"
	cmdRefresh = "refresh"
)

// callbackData encodes an inline button action. Telegram caps the payload at
// 64 bytes, which a uuid plus a short action fits in.
func callbackData(action, id string) string {
	return action + ":" + id
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	callback := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(callback); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	action, id, ok := strings.Cut(cb.Data, ":")
	if !ok || id == "" {
		return
	}

	b.log.Info("callback",
		"action", action,
		"id", id,
		"chat_id", chatID,
		"user_id", cb.From.ID,
		"username", cb.From.UserName,
	)

	switch action {
	case cmdMixer:
		b.handleMixer(ctx, chatID, id)
	case cmdMix:
		b.handleMix(ctx, chatID, id)
	case cmdRefresh:
		b.handleRefresh(ctx, chatID, id)
	}
}

func mixerKeyboard(id string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Details", callbackData(cmdMixer, id)),
			tgbotapi.NewInlineKeyboardButtonData("Mix", callbackData(cmdMix, id)),
		),
	)
}
