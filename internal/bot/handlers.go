package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
	"feedmixer/internal/storage"
)

// maxListedMixers bounds /mixers so the reply stays under Telegram's message size.
const maxListedMixers = 30

func (b *Bot) handleStart(chatID int64) {
	b.reply(chatID, `Welcome to FeedMixer!

Browse public mixers and read their mixed feeds.

Quick start:
1. /mixers - list public mixers
2. /mixer <id> - see its feeds and rules
3. /mix <id> - read the latest mixed items

Use /help for the full command reference.`)
}

func (b *Bot) handleHelp(chatID int64) {
	b.reply(chatID, `Mixers:
/mixers - list public mixers
/mixer <id> - mixer details, feeds and rules
/mix <id> [n] - first n mixed items (default 5, max 20)

Feeds:
/feeds - all feeds, stale ones are marked
/refresh <feed_id> - fetch a feed now`)
}

func (b *Bot) handleMixers(ctx context.Context, chatID int64) {
	mixers, total, err := b.store.ListMixers(ctx, storage.MixerFilter{
		PublicOnly: true,
		Page:       storage.Page{Limit: maxListedMixers},
	})
	if err != nil {
		b.log.Error("list mixers", "error", err)
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatMixerList(mixers, total))
}

// publicMixer loads a mixer, treating private ones as missing.
func (b *Bot) publicMixer(ctx context.Context, chatID int64, id string) (model.Mixer, bool) {
	m, err := b.store.GetMixer(ctx, id)
	if err == nil && m.IsPublic {
		return m, true
	}
	if err != nil && !mixerrs.Is(err, mixerrs.KindNotFound) {
		b.log.Error("get mixer", "mixer_id", id, "error", err)
	}
	b.reply(chatID, fmt.Sprintf("Mixer %s not found.", id))
	return model.Mixer{}, false
}

func (b *Bot) handleMixer(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /mixer <id>")
		return
	}

	m, ok := b.publicMixer(ctx, chatID, id)
	if !ok {
		return
	}
	feeds, err := b.store.MixerFeeds(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	rules, err := b.store.ListRules(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, FormatMixerInfo(m, feeds, rules))
	msg.ReplyMarkup = mixerKeyboard(id)
	b.send(msg)
}

func (b *Bot) handleMix(ctx context.Context, chatID int64, args string) {
	id, n, err := ParseMixArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}

	if _, ok := b.publicMixer(ctx, chatID, id); !ok {
		return
	}
	m, items, err := b.mixer.Generate(ctx, id)
	if err != nil {
		b.log.Warn("generate mix", "mixer_id", id, "error", err)
		b.reply(chatID, fmt.Sprintf("Failed to mix %s: %v", id, err))
		return
	}

	if len(items) == 0 {
		b.reply(chatID, fmt.Sprintf("Mixer %q has no items yet.", m.Name))
		return
	}
	shown := min(n, len(items))
	for _, item := range items[:shown] {
		b.reply(chatID, FormatItem(item))
	}
	b.reply(chatID, fmt.Sprintf("Showing %d of %d item(s) from %q.", shown, len(items), m.Name))
}

func (b *Bot) handleFeeds(ctx context.Context, chatID int64) {
	feeds, err := b.store.AllFeeds(ctx)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Error: %v", err))
		return
	}
	b.reply(chatID, FormatFeedList(feeds, b.now(), b.cfg.FeedMaxAgeMinutes))
}

func (b *Bot) handleRefresh(ctx context.Context, chatID int64, args string) {
	id, err := ParseIDArg(args)
	if err != nil {
		b.reply(chatID, "Usage: /refresh <feed_id>")
		return
	}

	feed, err := b.store.GetFeed(ctx, id)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Feed %s not found.", id))
		return
	}

	added, err := b.refresher.Refresh(ctx, feed)
	if err != nil {
		b.reply(chatID, fmt.Sprintf("Failed to refresh %q: %v", feed.Name, err))
		return
	}
	b.reply(chatID, fmt.Sprintf("Feed %q refreshed: %d new item(s).", feed.Name, added))
}
