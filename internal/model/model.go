// Package model defines the domain types used across the application.
package model

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/google/uuid"

	mixerrs "feedmixer/internal/errors"
)

// DefaultMaxAgeMinutes is the staleness threshold used when none is configured.
const DefaultMaxAgeMinutes = 60

// FeedStatus is the health of a feed as last observed by ingestion.
type FeedStatus string

// Supported feed statuses.
const (
	FeedStatusActive   FeedStatus = "active"
	FeedStatusInactive FeedStatus = "inactive"
	FeedStatusError    FeedStatus = "error"
)

// Valid reports whether s is a known status.
func (s FeedStatus) Valid() bool {
	switch s {
	case FeedStatusActive, FeedStatusInactive, FeedStatusError:
		return true
	}
	return false
}

// ParseFeedStatus converts a raw string into a FeedStatus.
func ParseFeedStatus(s string) (FeedStatus, error) {
	st := FeedStatus(s)
	if !st.Valid() {
		return "", mixerrs.E(fmt.Sprintf("unknown feed status %q", s), mixerrs.KindValidation,
			mixerrs.Detail{Field: "status", Error: "must be one of active, inactive, error"})
	}
	return st, nil
}

var feedURLPattern = regexp.MustCompile(
	`^(https?://)` +
		`([a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+` +
		`[a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?` +
		`(/[^/\s]+)*/?$`,
)

// FeedURL is a validated http(s) feed location.
type FeedURL string

// NewFeedURL validates raw and returns it as a FeedURL.
func NewFeedURL(raw string) (FeedURL, error) {
	if raw == "" {
		return "", mixerrs.E("feed URL cannot be empty", mixerrs.KindValidation,
			mixerrs.Detail{Field: "url", Error: "required"})
	}
	if !feedURLPattern.MatchString(raw) {
		return "", mixerrs.E(fmt.Sprintf("invalid feed URL format: %s", raw), mixerrs.KindValidation,
			mixerrs.Detail{Field: "url", Error: "must look like http(s)://host[/path]"})
	}
	return FeedURL(raw), nil
}

func (u FeedURL) String() string {
	return string(u)
}

// Feed is a named source of items identified by URL.
type Feed struct {
	ID          string
	Name        string
	URL         FeedURL
	Description string
	LastFetched *time.Time
	Status      FeedStatus
	CreatedAt   time.Time

	items []FeedItem
}

// NewFeed validates the URL and returns an active feed. An empty id is generated.
func NewFeed(id, name, rawURL string) (Feed, error) {
	u, err := NewFeedURL(rawURL)
	if err != nil {
		return Feed{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	return Feed{
		ID:     id,
		Name:   name,
		URL:    u,
		Status: FeedStatusActive,
	}, nil
}

// AddItem appends an item, stamping provenance when the item has none.
func (f *Feed) AddItem(item FeedItem) {
	if item.FeedSourceID == "" {
		item.FeedSourceID = f.ID
	}
	f.items = append(slices.Clip(f.items), item)
}

// Items returns a copy of the feed's items in insertion order.
func (f Feed) Items() []FeedItem {
	out := make([]FeedItem, len(f.items))
	copy(out, f.items)
	return out
}

// MarkFetched records now as the last successful or attempted fetch.
func (f *Feed) MarkFetched(now time.Time) {
	t := now.UTC()
	f.LastFetched = &t
}

// IsStale reports whether the feed was never fetched or was fetched more than
// maxAgeMinutes before now.
func (f Feed) IsStale(now time.Time, maxAgeMinutes int) bool {
	if f.LastFetched == nil {
		return true
	}
	age := now.Sub(*f.LastFetched)
	return age.Minutes() > float64(maxAgeMinutes)
}
