// Package scheduler keeps stored feeds fresh by refetching them once they
// are older than the configured maximum age.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"feedmixer/internal/fetcher"
	"feedmixer/internal/model"
	"feedmixer/internal/storage"
)

// Store is the subset of storage the scheduler needs.
type Store interface {
	AllFeeds(ctx context.Context) ([]model.Feed, error)
	AddItems(ctx context.Context, feedID string, items []model.FeedItem) (int, error)
	UpdateFeed(ctx context.Context, id string, args storage.UpdateFeedArgs) error
}

var _ Store = (*storage.SQLite)(nil)

// Scheduler periodically refreshes stale feeds.
type Scheduler struct {
	store   Store
	fetcher *fetcher.Fetcher
	log     *slog.Logger
	tick    time.Duration
	maxAge  int
	now     func() time.Time
}

// New creates a Scheduler with the default HTTP client.
func New(store Store, maxAgeMinutes int, log *slog.Logger) *Scheduler {
	return NewWithFetcher(store, fetcher.New(http.DefaultClient), maxAgeMinutes, log)
}

// NewWithFetcher creates a Scheduler with a custom fetcher (useful for testing).
func NewWithFetcher(store Store, f *fetcher.Fetcher, maxAgeMinutes int, log *slog.Logger) *Scheduler {
	if maxAgeMinutes <= 0 {
		maxAgeMinutes = model.DefaultMaxAgeMinutes
	}
	return &Scheduler{
		store:   store,
		fetcher: f,
		log:     log,
		tick:    1 * time.Minute,
		maxAge:  maxAgeMinutes,
		now:     time.Now,
	}
}

// SetTickInterval overrides the default 1-minute check interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetClock replaces the time source used for staleness checks.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Run starts the scheduler loop, blocking until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAll(ctx)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAll(ctx)
		}
	}
}

func (s *Scheduler) checkAll(ctx context.Context) {
	feeds, err := s.store.AllFeeds(ctx)
	if err != nil {
		s.log.Error("list feeds", "error", err)
		return
	}

	now := s.now()
	for _, feed := range feeds {
		if ctx.Err() != nil {
			return
		}
		if feed.Status == model.FeedStatusInactive || !feed.IsStale(now, s.maxAge) {
			continue
		}
		if _, err := s.Refresh(ctx, feed); err != nil {
			s.log.Warn("refresh feed", "feed_id", feed.ID, "url", feed.URL.String(), "error", err)
		}
	}
}

// Refresh fetches the feed, stores entries not seen before and records the
// outcome on the feed. It returns the number of new items.
func (s *Scheduler) Refresh(ctx context.Context, feed model.Feed) (int, error) {
	s.log.Debug("refreshing feed", "feed_id", feed.ID, "name", feed.Name)

	now := s.now().UTC()
	parsed, err := s.fetcher.Fetch(ctx, feed.URL.String())
	if err != nil {
		s.markFetched(ctx, feed.ID, model.FeedStatusError, now)
		return 0, fmt.Errorf("fetch feed %s: %w", feed.ID, err)
	}

	added, err := s.store.AddItems(ctx, feed.ID, fetcher.ToItems(parsed, feed.ID, now))
	if err != nil {
		s.markFetched(ctx, feed.ID, model.FeedStatusError, now)
		return 0, fmt.Errorf("store items of feed %s: %w", feed.ID, err)
	}

	s.markFetched(ctx, feed.ID, model.FeedStatusActive, now)
	if added > 0 {
		s.log.Info("stored new items", "feed_id", feed.ID, "name", feed.Name, "count", added)
	}
	return added, nil
}

func (s *Scheduler) markFetched(ctx context.Context, id string, status model.FeedStatus, now time.Time) {
	if err := s.store.UpdateFeed(ctx, id, storage.UpdateFeedArgs{
		Status:      &status,
		LastFetched: &now,
	}); err != nil {
		s.log.Error("update feed status", "feed_id", id, "error", err)
	}
}
