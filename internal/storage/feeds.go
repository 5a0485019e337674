package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
)

type feedRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	URL         string         `db:"url"`
	Description string         `db:"description"`
	Status      string         `db:"status"`
	LastFetched sql.NullString `db:"last_fetched"`
	CreatedAt   string         `db:"created_at"`
}

func (r feedRow) toModel() model.Feed {
	return model.Feed{
		ID:          r.ID,
		Name:        r.Name,
		URL:         model.FeedURL(r.URL),
		Description: r.Description,
		Status:      model.FeedStatus(r.Status),
		LastFetched: parseNullTime(r.LastFetched),
		CreatedAt:   parseTime(r.CreatedAt),
	}
}

const feedColumns = "id, name, url, description, status, last_fetched, created_at"

// CreateFeed inserts a new feed and populates its ID and CreatedAt.
func (s *SQLite) CreateFeed(ctx context.Context, feed *model.Feed) error {
	if feed.ID == "" {
		feed.ID = uuid.NewString()
	}
	if feed.Status == "" {
		feed.Status = model.FeedStatusActive
	}
	now := s.timestamp()

	var lastFetched sql.NullString
	if feed.LastFetched != nil {
		lastFetched = sql.NullString{String: formatTime(*feed.LastFetched), Valid: true}
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO feeds (id, name, url, description, status, last_fetched, created_at)
		 VALUES (:id, :name, :url, :description, :status, :last_fetched, :created_at)`,
		feedRow{
			ID:          feed.ID,
			Name:        feed.Name,
			URL:         feed.URL.String(),
			Description: feed.Description,
			Status:      string(feed.Status),
			LastFetched: lastFetched,
			CreatedAt:   now,
		},
	)
	if isUnique(err) {
		return mixerrs.E(fmt.Sprintf("feed with url %s already exists", feed.URL), mixerrs.KindConflict,
			mixerrs.Detail{Field: "url", Error: "already exists"})
	}
	if err != nil {
		return fmt.Errorf("insert feed: %w", err)
	}
	feed.CreatedAt = parseTime(now)
	return nil
}

// GetFeed returns a single feed by its ID.
func (s *SQLite) GetFeed(ctx context.Context, id string) (model.Feed, error) {
	var row feedRow
	err := s.db.GetContext(ctx, &row, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Feed{}, notFound("feed", id)
	}
	if err != nil {
		return model.Feed{}, fmt.Errorf("get feed: %w", err)
	}
	return row.toModel(), nil
}

// ListFeeds returns one page of feeds in creation order and the total count.
func (s *SQLite) ListFeeds(ctx context.Context, page Page) ([]model.Feed, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM feeds`); err != nil {
		return nil, 0, fmt.Errorf("count feeds: %w", err)
	}

	query, args, err := paginate(sq.Select(feedColumns).From("feeds").OrderBy("created_at", "rowid"), page).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build feeds query: %w", err)
	}
	feeds, err := s.selectFeeds(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return feeds, total, nil
}

// AllFeeds returns every feed.
func (s *SQLite) AllFeeds(ctx context.Context) ([]model.Feed, error) {
	return s.selectFeeds(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY created_at, rowid`)
}

// UpdateFeed applies the non-nil fields of args to the feed.
func (s *SQLite) UpdateFeed(ctx context.Context, id string, args UpdateFeedArgs) error {
	q := sq.Update("feeds")
	set := false
	if args.Name != nil {
		q, set = q.Set("name", *args.Name), true
	}
	if args.Description != nil {
		q, set = q.Set("description", *args.Description), true
	}
	if args.Status != nil {
		if !args.Status.Valid() {
			return mixerrs.E(fmt.Sprintf("unknown feed status %q", *args.Status), mixerrs.KindValidation,
				mixerrs.Detail{Field: "status", Error: "must be one of active, inactive, error"})
		}
		q, set = q.Set("status", string(*args.Status)), true
	}
	if args.LastFetched != nil {
		q, set = q.Set("last_fetched", formatTime(*args.LastFetched)), true
	}
	if !set {
		_, err := s.GetFeed(ctx, id)
		return err
	}

	query, qArgs, err := q.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build feed update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, qArgs...)
	if err != nil {
		return fmt.Errorf("update feed: %w", err)
	}
	return expectRow(res, "feed", id)
}

// DeleteFeed removes a feed, its items and its mixer memberships.
func (s *SQLite) DeleteFeed(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM feed_items WHERE feed_id = ?`, id); err != nil {
		return fmt.Errorf("delete feed_items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM mixer_feeds WHERE feed_id = ?`, id); err != nil {
		return fmt.Errorf("delete mixer_feeds: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}
	if err := expectRow(res, "feed", id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) selectFeeds(ctx context.Context, query string, args ...any) ([]model.Feed, error) {
	var rows []feedRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select feeds: %w", err)
	}
	feeds := make([]model.Feed, 0, len(rows))
	for _, r := range rows {
		feeds = append(feeds, r.toModel())
	}
	return feeds, nil
}

func paginate(q sq.SelectBuilder, page Page) sq.SelectBuilder {
	switch {
	case page.Limit > 0:
		q = q.Limit(uint64(page.Limit))
	case page.Offset > 0:
		// SQLite only accepts OFFSET after a LIMIT.
		q = q.Limit(math.MaxInt32)
	}
	if page.Offset > 0 {
		q = q.Offset(uint64(page.Offset))
	}
	return q
}
