// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"feedmixer/internal/model"
)

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

// UpdateFeedArgs holds the optional fields of a feed update. Nil fields are
// left untouched.
type UpdateFeedArgs struct {
	Name        *string
	Description *string
	Status      *model.FeedStatus
	LastFetched *time.Time
}

// UpdateMixerArgs holds the optional fields of a mixer update.
type UpdateMixerArgs struct {
	Name         *string
	Description  *string
	IsPublic     *bool
	OutputFormat *string
}

// MixerFilter narrows a mixer listing.
type MixerFilter struct {
	PublicOnly bool
	Page       Page
}

// Storage is the interface for all persistence operations.
//
// Lookups of a missing id fail with a not-found error; creating a feed with a
// URL that is already stored fails with a conflict error.
type Storage interface {
	CreateFeed(ctx context.Context, feed *model.Feed) error
	GetFeed(ctx context.Context, id string) (model.Feed, error)
	ListFeeds(ctx context.Context, page Page) ([]model.Feed, int, error)
	AllFeeds(ctx context.Context) ([]model.Feed, error)
	UpdateFeed(ctx context.Context, id string, args UpdateFeedArgs) error
	DeleteFeed(ctx context.Context, id string) error

	// AddItems stores items for a feed, skipping those whose guid the feed
	// already has. It returns how many were inserted.
	AddItems(ctx context.Context, feedID string, items []model.FeedItem) (int, error)
	ListItems(ctx context.Context, feedID string, page Page) ([]model.FeedItem, int, error)

	CreateMixer(ctx context.Context, m *model.Mixer) error
	GetMixer(ctx context.Context, id string) (model.Mixer, error)
	ListMixers(ctx context.Context, filter MixerFilter) ([]model.Mixer, int, error)
	UpdateMixer(ctx context.Context, id string, args UpdateMixerArgs) error
	DeleteMixer(ctx context.Context, id string) error
	AttachFeed(ctx context.Context, mixerID, feedID string) error
	DetachFeed(ctx context.Context, mixerID, feedID string) error
	MixerFeeds(ctx context.Context, mixerID string) ([]model.Feed, error)

	CreateRule(ctx context.Context, r *model.Rule) error
	GetRule(ctx context.Context, id string) (model.Rule, error)
	ListRules(ctx context.Context, mixerID string) ([]model.Rule, error)
	UpdateRule(ctx context.Context, r model.Rule) error
	DeleteRule(ctx context.Context, id string) error

	// MixerSnapshot loads a mixer with its feeds, their items, and its rules.
	MixerSnapshot(ctx context.Context, id string) (model.Mixer, error)

	Ping(ctx context.Context) error
	Close() error
}
