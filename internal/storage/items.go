package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"feedmixer/internal/model"
)

type itemRow struct {
	ID            string         `db:"id"`
	FeedID        string         `db:"feed_id"`
	Title         string         `db:"title"`
	Content       string         `db:"content"`
	Link          string         `db:"link"`
	PublishedDate string         `db:"published_date"`
	Author        string         `db:"author"`
	GUID          sql.NullString `db:"guid"`
	Tags          string         `db:"tags"`
	Extra         string         `db:"extra"`
	CreatedAt     string         `db:"created_at"`
}

const itemColumns = "id, feed_id, title, content, link, published_date, author, guid, tags, extra, created_at"

func newItemRow(feedID string, it model.FeedItem, now string) (itemRow, error) {
	tags, err := json.Marshal(it.Tags())
	if err != nil {
		return itemRow{}, fmt.Errorf("encode tags: %w", err)
	}
	extra := it.Extensions()
	if extra == nil {
		extra = map[string]any{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return itemRow{}, fmt.Errorf("encode extensions: %w", err)
	}

	id := it.ID
	if id == "" {
		id = uuid.NewString()
	}
	return itemRow{
		ID:            id,
		FeedID:        feedID,
		Title:         it.Title,
		Content:       it.Content,
		Link:          it.Link,
		PublishedDate: formatTime(it.PublishedDate),
		Author:        it.Author,
		GUID:          sql.NullString{String: it.GUID, Valid: it.GUID != ""},
		Tags:          string(tags),
		Extra:         string(extraJSON),
		CreatedAt:     now,
	}, nil
}

func (r itemRow) toModel() (model.FeedItem, error) {
	it := model.NewFeedItem(r.ID, r.Title, r.Content, r.Link, parseTime(r.PublishedDate))
	it.Author = r.Author
	it.FeedSourceID = r.FeedID
	it.GUID = r.GUID.String

	var tags []string
	if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
		return model.FeedItem{}, fmt.Errorf("decode tags of item %s: %w", r.ID, err)
	}
	for _, tag := range tags {
		it.AddTag(tag)
	}

	var extra map[string]any
	if err := json.Unmarshal([]byte(r.Extra), &extra); err != nil {
		return model.FeedItem{}, fmt.Errorf("decode extensions of item %s: %w", r.ID, err)
	}
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		if err := it.SetExtension(k, extra[k]); err != nil {
			return model.FeedItem{}, fmt.Errorf("restore extension %s of item %s: %w", k, r.ID, err)
		}
	}
	return it, nil
}

// AddItems inserts items for feedID. Items whose guid is already stored for
// the feed are skipped.
func (s *SQLite) AddItems(ctx context.Context, feedID string, items []model.FeedItem) (int, error) {
	if _, err := s.GetFeed(ctx, feedID); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.timestamp()
	inserted := 0
	for _, it := range items {
		row, err := newItemRow(feedID, it, now)
		if err != nil {
			return 0, err
		}
		res, err := tx.NamedExecContext(ctx,
			`INSERT OR IGNORE INTO feed_items (`+itemColumns+`)
			 VALUES (:id, :feed_id, :title, :content, :link, :published_date, :author, :guid, :tags, :extra, :created_at)`,
			row,
		)
		if err != nil {
			return 0, fmt.Errorf("insert feed item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit items: %w", err)
	}
	return inserted, nil
}

// ListItems returns one page of a feed's items in insertion order and the total count.
func (s *SQLite) ListItems(ctx context.Context, feedID string, page Page) ([]model.FeedItem, int, error) {
	if _, err := s.GetFeed(ctx, feedID); err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM feed_items WHERE feed_id = ?`, feedID); err != nil {
		return nil, 0, fmt.Errorf("count feed items: %w", err)
	}

	q := sq.Select(itemColumns).From("feed_items").Where(sq.Eq{"feed_id": feedID}).OrderBy("rowid")
	query, args, err := paginate(q, page).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build items query: %w", err)
	}
	items, err := s.selectItems(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *SQLite) feedItems(ctx context.Context, feedID string) ([]model.FeedItem, error) {
	return s.selectItems(ctx, `SELECT `+itemColumns+` FROM feed_items WHERE feed_id = ? ORDER BY rowid`, feedID)
}

func (s *SQLite) selectItems(ctx context.Context, query string, args ...any) ([]model.FeedItem, error) {
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select feed items: %w", err)
	}
	items := make([]model.FeedItem, 0, len(rows))
	for _, r := range rows {
		it, err := r.toModel()
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}
