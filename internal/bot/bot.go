package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"feedmixer/internal/config"
	"feedmixer/internal/model"
	"feedmixer/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Store is the read side of the storage the bot browses.
type Store interface {
	ListMixers(ctx context.Context, filter storage.MixerFilter) ([]model.Mixer, int, error)
	GetMixer(ctx context.Context, id string) (model.Mixer, error)
	MixerFeeds(ctx context.Context, mixerID string) ([]model.Feed, error)
	ListRules(ctx context.Context, mixerID string) ([]model.Rule, error)
	AllFeeds(ctx context.Context) ([]model.Feed, error)
	GetFeed(ctx context.Context, id string) (model.Feed, error)
}

var _ Store = (*storage.SQLite)(nil)

// Generator runs a mixer and returns its output.
type Generator interface {
	Generate(ctx context.Context, id string) (model.Mixer, []model.FeedItem, error)
}

// Refresher fetches a feed on demand and reports how many items it added.
type Refresher interface {
	Refresh(ctx context.Context, feed model.Feed) (int, error)
}

// Bot is the Telegram bot that lets allowed users browse public mixers.
type Bot struct {
	api       telegramAPI
	store     Store
	mixer     Generator
	refresher Refresher
	cfg       *config.Config
	log       *slog.Logger
	now       func() time.Time
}

// New creates a Bot with the given Telegram token.
func New(token string, store Store, gen Generator, refresher Refresher, cfg *config.Config, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	return &Bot{
		api:       api,
		store:     store,
		mixer:     gen,
		refresher: refresher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}, nil
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		if cb := update.CallbackQuery; cb.From == nil || !b.cfg.IsUserAllowed(cb.From.ID) {
			return
		}
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if msg.From == nil || !b.cfg.IsUserAllowed(msg.From.ID) {
		b.reply(msg.Chat.ID, "Access denied.")
		return
	}
	b.handleCommand(ctx, msg)
}

// SendMessage sends a text message to the given chat.
func (b *Bot) SendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	msg.DisableWebPagePreview = true
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "chat_id", msg.ChatID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.SendMessage(chatID, text)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())
	chatID := msg.Chat.ID

	b.log.Debug("command", "cmd", cmd, "args", args, "chat_id", chatID)

	switch cmd {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "mixers":
		b.handleMixers(ctx, chatID)
	case cmdMixer:
		b.handleMixer(ctx, chatID, args)
	case cmdMix:
		b.handleMix(ctx, chatID, args)
	case "feeds":
		b.handleFeeds(ctx, chatID)
	case cmdRefresh:
		b.handleRefresh(ctx, chatID, args)
	default:
		b.reply(chatID, "Unknown command. Use /help for a list of commands.")
	}
}
