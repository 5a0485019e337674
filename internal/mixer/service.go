package mixer

import (
	"context"
	"fmt"
	"log/slog"

	"feedmixer/internal/model"
	"feedmixer/internal/rule"
)

// SnapshotLoader resolves a mixer id into a fully materialized mixer: its
// feeds with their items and its rules.
type SnapshotLoader interface {
	MixerSnapshot(ctx context.Context, id string) (model.Mixer, error)
}

// Service is the mixing entry point used by the transports.
type Service struct {
	store SnapshotLoader
	opts  Options
	log   *slog.Logger
}

// NewService returns a Service resolving mixers through store.
func NewService(store SnapshotLoader, reg *rule.Registry, logic rule.LogicMode, log *slog.Logger) *Service {
	return &Service{
		store: store,
		opts:  Options{Registry: reg, Logic: logic},
		log:   log,
	}
}

// Generate mixes the mixer identified by id. A missing mixer surfaces as a
// not-found error from the store.
func (s *Service) Generate(ctx context.Context, id string) (model.Mixer, []model.FeedItem, error) {
	m, err := s.store.MixerSnapshot(ctx, id)
	if err != nil {
		return model.Mixer{}, nil, fmt.Errorf("load mixer %s: %w", id, err)
	}

	items, err := Mix(m, s.opts)
	if err != nil {
		s.log.WarnContext(ctx, "mixing failed", "mixer_id", id, "error", err)
		return m, nil, fmt.Errorf("mix %s: %w", id, err)
	}

	s.log.DebugContext(ctx, "mixed feed",
		"mixer_id", id,
		"feeds", len(m.Feeds()),
		"rules", len(m.Rules()),
		"items", len(items),
	)
	return m, items, nil
}

// Validate compiles r with the service's options without running it.
func (s *Service) Validate(r model.Rule) error {
	_, err := rule.Compile(r, s.opts.Registry, s.opts.Logic)
	return err
}
