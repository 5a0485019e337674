package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Default mixer settings.
const (
	DefaultOutputFormat = "rss"
)

// Mixer is a named aggregation of feeds plus an ordered rule set.
//
// Feeds and rules are sets by identity and keep the order they were added in.
type Mixer struct {
	ID           string
	Name         string
	Description  string
	IsPublic     bool
	OutputFormat string
	CreatedAt    time.Time

	feeds []Feed
	rules []Rule
}

// NewMixer returns a public mixer with the default output format. An empty id is generated.
func NewMixer(id, name string) Mixer {
	if id == "" {
		id = uuid.NewString()
	}
	return Mixer{
		ID:           id,
		Name:         name,
		IsPublic:     true,
		OutputFormat: DefaultOutputFormat,
	}
}

// AddFeed adds f unless a feed with the same id is already present.
func (m *Mixer) AddFeed(f Feed) {
	if slices.ContainsFunc(m.feeds, func(x Feed) bool { return x.ID == f.ID }) {
		return
	}
	m.feeds = append(slices.Clip(m.feeds), f)
}

// RemoveFeed drops the feed with the given id.
func (m *Mixer) RemoveFeed(id string) {
	m.feeds = slices.DeleteFunc(slices.Clone(m.feeds), func(x Feed) bool { return x.ID == id })
}

// AddRule adds r unless a rule with the same id is already present.
func (m *Mixer) AddRule(r Rule) {
	if slices.ContainsFunc(m.rules, func(x Rule) bool { return x.ID == r.ID }) {
		return
	}
	m.rules = append(slices.Clip(m.rules), r)
}

// RemoveRule drops the rule with the given id.
func (m *Mixer) RemoveRule(id string) {
	m.rules = slices.DeleteFunc(slices.Clone(m.rules), func(x Rule) bool { return x.ID == id })
}

// Feeds returns a copy of the mixer's feeds in the order they were added.
func (m Mixer) Feeds() []Feed {
	return slices.Clone(m.feeds)
}

// Rules returns a copy of the mixer's rules in the order they were added.
func (m Mixer) Rules() []Rule {
	return slices.Clone(m.rules)
}
