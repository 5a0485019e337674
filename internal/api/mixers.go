package api

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
	"feedmixer/internal/storage"
)

var outputFormats = []string{"rss", "atom", "json"}

type (
	mixerResp struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Description  string    `json:"description"`
		IsPublic     bool      `json:"is_public"`
		OutputFormat string    `json:"output_format"`
		CreatedAt    time.Time `json:"created_at"`
	}

	// mixerDetailResp is a mixer with its feeds and rules.
	mixerDetailResp struct {
		mixerResp
		Feeds []feedResp `json:"feeds"`
		Rules []ruleResp `json:"rules"`
	}

	mixedResp struct {
		MixerID      string     `json:"mixer_id"`
		OutputFormat string     `json:"output_format"`
		Count        int        `json:"count"`
		Items        []itemResp `json:"items"`
	}
)

func newMixerResp(m model.Mixer) mixerResp {
	return mixerResp{
		ID:           m.ID,
		Name:         m.Name,
		Description:  m.Description,
		IsPublic:     m.IsPublic,
		OutputFormat: m.OutputFormat,
		CreatedAt:    m.CreatedAt,
	}
}

func checkOutputFormat(f string) error {
	if !slices.Contains(outputFormats, f) {
		return mixerrs.E("unknown output format "+strconv.Quote(f), mixerrs.KindValidation,
			mixerrs.Detail{Field: "output_format", Error: "must be one of " + strings.Join(outputFormats, ", ")})
	}
	return nil
}

type createMixerReq struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	IsPublic     *bool  `json:"is_public"`
	OutputFormat string `json:"output_format"`
}

func (r createMixerReq) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return mixerrs.E("mixer name is required", mixerrs.KindValidation,
			mixerrs.Detail{Field: "name", Error: "required"})
	}
	if r.OutputFormat != "" {
		return checkOutputFormat(r.OutputFormat)
	}
	return nil
}

func (s *Server) postMixer(w http.ResponseWriter, r *http.Request) error {
	req, err := decodeValid[createMixerReq](r)
	if err != nil {
		return err
	}

	m := model.NewMixer("", req.Name)
	m.Description = req.Description
	if req.IsPublic != nil {
		m.IsPublic = *req.IsPublic
	}
	if req.OutputFormat != "" {
		m.OutputFormat = req.OutputFormat
	}
	if err := s.store.CreateMixer(r.Context(), &m); err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, newMixerResp(m))
}

func (s *Server) getMixers(w http.ResponseWriter, r *http.Request) error {
	p := parsePagination(r)
	publicOnly, _ := strconv.ParseBool(r.URL.Query().Get("public"))

	mixers, total, err := s.store.ListMixers(r.Context(), storage.MixerFilter{PublicOnly: publicOnly, Page: p})
	if err != nil {
		return err
	}

	resps := make([]mixerResp, 0, len(mixers))
	for _, m := range mixers {
		resps = append(resps, newMixerResp(m))
	}
	return writeJSON(w, http.StatusOK, newPage(resps, p, total))
}

func (s *Server) getMixer(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	m, err := s.store.GetMixer(ctx, id)
	if err != nil {
		return err
	}
	feeds, err := s.store.MixerFeeds(ctx, id)
	if err != nil {
		return err
	}
	rules, err := s.store.ListRules(ctx, id)
	if err != nil {
		return err
	}

	resp := mixerDetailResp{
		mixerResp: newMixerResp(m),
		Feeds:     make([]feedResp, 0, len(feeds)),
		Rules:     make([]ruleResp, 0, len(rules)),
	}
	for _, f := range feeds {
		resp.Feeds = append(resp.Feeds, newFeedResp(f))
	}
	for _, rl := range rules {
		resp.Rules = append(resp.Rules, newRuleResp(rl))
	}
	return writeJSON(w, http.StatusOK, resp)
}

type updateMixerReq struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	IsPublic     *bool   `json:"is_public"`
	OutputFormat *string `json:"output_format"`
}

func (r updateMixerReq) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return mixerrs.E("mixer name must not be empty", mixerrs.KindValidation,
			mixerrs.Detail{Field: "name", Error: "must not be empty"})
	}
	if r.OutputFormat != nil {
		return checkOutputFormat(*r.OutputFormat)
	}
	return nil
}

func (s *Server) putMixer(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	req, err := decodeValid[updateMixerReq](r)
	if err != nil {
		return err
	}
	if err := s.store.UpdateMixer(ctx, id, storage.UpdateMixerArgs{
		Name:         req.Name,
		Description:  req.Description,
		IsPublic:     req.IsPublic,
		OutputFormat: req.OutputFormat,
	}); err != nil {
		return err
	}

	m, err := s.store.GetMixer(ctx, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, newMixerResp(m))
}

func (s *Server) deleteMixer(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.DeleteMixer(r.Context(), mux.Vars(r)["id"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type attachFeedReq struct {
	FeedID string `json:"feed_id"`
}

func (r attachFeedReq) Validate() error {
	if r.FeedID == "" {
		return mixerrs.E("feed_id is required", mixerrs.KindValidation,
			mixerrs.Detail{Field: "feed_id", Error: "required"})
	}
	return nil
}

func (s *Server) postMixerFeed(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	req, err := decodeValid[attachFeedReq](r)
	if err != nil {
		return err
	}
	if err := s.store.AttachFeed(ctx, id, req.FeedID); err != nil {
		return err
	}

	feeds, err := s.store.MixerFeeds(ctx, id)
	if err != nil {
		return err
	}
	resps := make([]feedResp, 0, len(feeds))
	for _, f := range feeds {
		resps = append(resps, newFeedResp(f))
	}
	return writeJSON(w, http.StatusOK, resps)
}

func (s *Server) deleteMixerFeed(w http.ResponseWriter, r *http.Request) error {
	vars := mux.Vars(r)
	if err := s.store.DetachFeed(r.Context(), vars["id"], vars["feedID"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// getMixedItems runs the mixer and returns its output. ?limit caps the
// number of items returned after mixing.
func (s *Server) getMixedItems(w http.ResponseWriter, r *http.Request) error {
	m, items, err := s.mixer.Generate(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(items) {
		items = items[:limit]
	}
	return writeJSON(w, http.StatusOK, mixedResp{
		MixerID:      m.ID,
		OutputFormat: m.OutputFormat,
		Count:        len(items),
		Items:        newItemResps(items),
	})
}
