package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"feedmixer/internal/model"
	"feedmixer/internal/rule"
)

const (
	snippetRunes = 280
	timeLayout   = "2006-01-02 15:04 UTC"
)

// Item content is stored as sanitized HTML; messages are sent as plain text.
var plainText = bluemonday.StrictPolicy()

// FormatMixerList formats the public mixers for display. total is the number
// of public mixers, which may exceed len(mixers).
func FormatMixerList(mixers []model.Mixer, total int) string {
	if len(mixers) == 0 {
		return "There are no public mixers yet."
	}
	var b strings.Builder
	b.WriteString("Public mixers:\n")
	for _, m := range mixers {
		fmt.Fprintf(&b, "\n%s [%s]\n   id: %s\n", m.Name, m.OutputFormat, m.ID)
		if m.Description != "" {
			fmt.Fprintf(&b, "   %s\n", m.Description)
		}
	}
	if total > len(mixers) {
		fmt.Fprintf(&b, "\n...and %d more.\n", total-len(mixers))
	}
	b.WriteString("\nUse /mixer <id> for details or /mix <id> to read it.")
	return b.String()
}

// FormatMixerInfo formats a mixer with its feeds and rules.
func FormatMixerInfo(m model.Mixer, feeds []model.Feed, rules []model.Rule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]\nid: %s\n", m.Name, m.OutputFormat, m.ID)
	if m.Description != "" {
		fmt.Fprintf(&b, "%s\n", m.Description)
	}

	if len(feeds) == 0 {
		b.WriteString("\nNo feeds.\n")
	} else {
		b.WriteString("\nFeeds:\n")
		for _, f := range feeds {
			fmt.Fprintf(&b, "  %s (%s) [%s]\n", f.Name, f.URL, f.Status)
		}
	}

	if len(rules) == 0 {
		b.WriteString("\nNo rules.")
		return b.String()
	}
	b.WriteString("\nRules:\n")
	for _, r := range rules {
		b.WriteString(FormatRule(r))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatRule describes a rule on one line per clause.
func FormatRule(r model.Rule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  [%s] %s (priority %d)", r.Type, r.Name, r.Priority)

	conds := r.Conditions()
	if len(conds) > 0 {
		b.WriteString("\n    when ")
		for i, c := range conds {
			if i > 0 {
				fmt.Fprintf(&b, " %s ", strings.ToUpper(string(conds[i-1].Logic)))
			}
			fmt.Fprintf(&b, "%s %s %q", c.Field, c.Operator, rule.StringForm(c.Value))
		}
	}
	for _, t := range r.Transformations() {
		if t.Type == model.TransformCustom {
			fmt.Fprintf(&b, "\n    %s: %s %s", t.Field, t.Type, t.CustomFunction)
			continue
		}
		fmt.Fprintf(&b, "\n    %s: %s %q", t.Field, t.Type, rule.StringForm(t.Value))
	}
	return b.String()
}

// FormatItem formats a mixed item as a Telegram message.
func FormatItem(item model.FeedItem) string {
	var b strings.Builder
	b.WriteString(item.Title)
	b.WriteString("\n")
	b.WriteString(item.PublishedDate.UTC().Format(timeLayout))
	if item.Author != "" {
		fmt.Fprintf(&b, " by %s", item.Author)
	}
	if s := snippet(item.Content); s != "" {
		b.WriteString("\n\n")
		b.WriteString(s)
	}
	if item.Link != "" {
		b.WriteString("\n\n")
		b.WriteString(item.Link)
	}
	if tags := item.Tags(); len(tags) > 0 {
		b.WriteString("\n\n#")
		b.WriteString(strings.Join(tags, " #"))
	}
	return b.String()
}

func snippet(content string) string {
	s := strings.Join(strings.Fields(html.UnescapeString(plainText.Sanitize(content))), " ")
	if utf8.RuneCountInString(s) <= snippetRunes {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:snippetRunes])) + "..."
}

// FormatFeedList formats every feed, marking the ones due for a refresh.
func FormatFeedList(feeds []model.Feed, now time.Time, maxAgeMinutes int) string {
	if len(feeds) == 0 {
		return "There are no feeds yet."
	}
	var b strings.Builder
	b.WriteString("Feeds:\n")
	for _, f := range feeds {
		fmt.Fprintf(&b, "\n%s [%s]", f.Name, f.Status)
		if f.Status != model.FeedStatusInactive && f.IsStale(now, maxAgeMinutes) {
			b.WriteString(" (stale)")
		}
		fmt.Fprintf(&b, "\n   id: %s\n   %s\n", f.ID, f.URL)
		if f.LastFetched != nil {
			fmt.Fprintf(&b, "   last fetched: %s\n", f.LastFetched.UTC().Format(timeLayout))
		} else {
			b.WriteString("   never fetched\n")
		}
	}
	return b.String()
}
