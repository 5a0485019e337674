package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"feedmixer/internal/model"
)

type mixerRow struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Description  string `db:"description"`
	IsPublic     int    `db:"is_public"`
	OutputFormat string `db:"output_format"`
	CreatedAt    string `db:"created_at"`
}

func (r mixerRow) toModel() model.Mixer {
	m := model.NewMixer(r.ID, r.Name)
	m.Description = r.Description
	m.IsPublic = r.IsPublic == 1
	m.OutputFormat = r.OutputFormat
	m.CreatedAt = parseTime(r.CreatedAt)
	return m
}

const mixerColumns = "id, name, description, is_public, output_format, created_at"

// CreateMixer inserts a new mixer and populates its ID and CreatedAt.
func (s *SQLite) CreateMixer(ctx context.Context, m *model.Mixer) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.OutputFormat == "" {
		m.OutputFormat = model.DefaultOutputFormat
	}
	now := s.timestamp()

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO mixers (`+mixerColumns+`)
		 VALUES (:id, :name, :description, :is_public, :output_format, :created_at)`,
		mixerRow{
			ID:           m.ID,
			Name:         m.Name,
			Description:  m.Description,
			IsPublic:     boolToInt(m.IsPublic),
			OutputFormat: m.OutputFormat,
			CreatedAt:    now,
		},
	)
	if err != nil {
		return fmt.Errorf("insert mixer: %w", err)
	}
	m.CreatedAt = parseTime(now)
	return nil
}

// GetMixer returns a mixer by id without its feeds and rules.
func (s *SQLite) GetMixer(ctx context.Context, id string) (model.Mixer, error) {
	var row mixerRow
	err := s.db.GetContext(ctx, &row, `SELECT `+mixerColumns+` FROM mixers WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Mixer{}, notFound("mixer", id)
	}
	if err != nil {
		return model.Mixer{}, fmt.Errorf("get mixer: %w", err)
	}
	return row.toModel(), nil
}

// ListMixers returns one page of mixers matching filter and the total count.
func (s *SQLite) ListMixers(ctx context.Context, filter MixerFilter) ([]model.Mixer, int, error) {
	count := sq.Select("COUNT(*)").From("mixers")
	list := sq.Select(mixerColumns).From("mixers").OrderBy("created_at", "rowid")
	if filter.PublicOnly {
		count = count.Where(sq.Eq{"is_public": 1})
		list = list.Where(sq.Eq{"is_public": 1})
	}

	query, args, err := count.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build mixer count: %w", err)
	}
	var total int
	if err := s.db.GetContext(ctx, &total, query, args...); err != nil {
		return nil, 0, fmt.Errorf("count mixers: %w", err)
	}

	query, args, err = paginate(list, filter.Page).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build mixers query: %w", err)
	}
	var rows []mixerRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("select mixers: %w", err)
	}

	mixers := make([]model.Mixer, 0, len(rows))
	for _, r := range rows {
		mixers = append(mixers, r.toModel())
	}
	return mixers, total, nil
}

// UpdateMixer applies the non-nil fields of args to the mixer.
func (s *SQLite) UpdateMixer(ctx context.Context, id string, args UpdateMixerArgs) error {
	q := sq.Update("mixers")
	set := false
	if args.Name != nil {
		q, set = q.Set("name", *args.Name), true
	}
	if args.Description != nil {
		q, set = q.Set("description", *args.Description), true
	}
	if args.IsPublic != nil {
		q, set = q.Set("is_public", boolToInt(*args.IsPublic)), true
	}
	if args.OutputFormat != nil {
		q, set = q.Set("output_format", *args.OutputFormat), true
	}
	if !set {
		_, err := s.GetMixer(ctx, id)
		return err
	}

	query, qArgs, err := q.Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build mixer update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, qArgs...)
	if err != nil {
		return fmt.Errorf("update mixer: %w", err)
	}
	return expectRow(res, "mixer", id)
}

// DeleteMixer removes a mixer, its rules and its feed memberships. Feeds
// themselves are kept.
func (s *SQLite) DeleteMixer(ctx context.Context, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE mixer_id = ?`, id); err != nil {
		return fmt.Errorf("delete rules: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM mixer_feeds WHERE mixer_id = ?`, id); err != nil {
		return fmt.Errorf("delete mixer_feeds: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM mixers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete mixer: %w", err)
	}
	if err := expectRow(res, "mixer", id); err != nil {
		return err
	}
	return tx.Commit()
}

// AttachFeed appends a feed to the mixer's feed list. Attaching a feed that
// is already a member is a no-op.
func (s *SQLite) AttachFeed(ctx context.Context, mixerID, feedID string) error {
	if _, err := s.GetMixer(ctx, mixerID); err != nil {
		return err
	}
	if _, err := s.GetFeed(ctx, feedID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO mixer_feeds (mixer_id, feed_id, position)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM mixer_feeds WHERE mixer_id = ?))`,
		mixerID, feedID, mixerID,
	)
	if err != nil {
		return fmt.Errorf("attach feed: %w", err)
	}
	return nil
}

// DetachFeed removes a feed from the mixer's feed list.
func (s *SQLite) DetachFeed(ctx context.Context, mixerID, feedID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM mixer_feeds WHERE mixer_id = ? AND feed_id = ?`, mixerID, feedID)
	if err != nil {
		return fmt.Errorf("detach feed: %w", err)
	}
	return expectRow(res, "mixer feed", feedID)
}

// MixerFeeds returns the mixer's feeds in the order they were attached.
func (s *SQLite) MixerFeeds(ctx context.Context, mixerID string) ([]model.Feed, error) {
	return s.selectFeeds(ctx,
		`SELECT f.id, f.name, f.url, f.description, f.status, f.last_fetched, f.created_at
		 FROM feeds f JOIN mixer_feeds mf ON mf.feed_id = f.id
		 WHERE mf.mixer_id = ?
		 ORDER BY mf.position`,
		mixerID,
	)
}

// MixerSnapshot loads a mixer with its feeds, their items, and its rules.
func (s *SQLite) MixerSnapshot(ctx context.Context, id string) (model.Mixer, error) {
	m, err := s.GetMixer(ctx, id)
	if err != nil {
		return model.Mixer{}, err
	}

	feeds, err := s.MixerFeeds(ctx, id)
	if err != nil {
		return model.Mixer{}, err
	}
	for _, f := range feeds {
		items, err := s.feedItems(ctx, f.ID)
		if err != nil {
			return model.Mixer{}, err
		}
		for _, it := range items {
			f.AddItem(it)
		}
		m.AddFeed(f)
	}

	rules, err := s.ListRules(ctx, id)
	if err != nil {
		return model.Mixer{}, err
	}
	for _, r := range rules {
		m.AddRule(r)
	}
	return m, nil
}
