package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	mixerrs "feedmixer/internal/errors"
	"feedmixer/internal/model"
	"feedmixer/internal/storage"
)

type (
	feedResp struct {
		ID          string     `json:"id"`
		Name        string     `json:"name"`
		URL         string     `json:"url"`
		Description string     `json:"description"`
		Status      string     `json:"status"`
		LastFetched *time.Time `json:"last_fetched"`
		CreatedAt   time.Time  `json:"created_at"`
	}

	itemResp struct {
		ID            string         `json:"id"`
		Title         string         `json:"title"`
		Content       string         `json:"content"`
		Link          string         `json:"link"`
		PublishedDate time.Time      `json:"published_date"`
		Author        string         `json:"author,omitempty"`
		FeedSourceID  string         `json:"feed_source_id"`
		GUID          string         `json:"guid,omitempty"`
		Tags          []string       `json:"tags"`
		Extensions    map[string]any `json:"extensions,omitempty"`
	}
)

func newFeedResp(f model.Feed) feedResp {
	return feedResp{
		ID:          f.ID,
		Name:        f.Name,
		URL:         f.URL.String(),
		Description: f.Description,
		Status:      string(f.Status),
		LastFetched: f.LastFetched,
		CreatedAt:   f.CreatedAt,
	}
}

func newItemResp(it model.FeedItem) itemResp {
	tags := it.Tags()
	if tags == nil {
		tags = []string{}
	}
	return itemResp{
		ID:            it.ID,
		Title:         it.Title,
		Content:       it.Content,
		Link:          it.Link,
		PublishedDate: it.PublishedDate,
		Author:        it.Author,
		FeedSourceID:  it.FeedSourceID,
		GUID:          it.GUID,
		Tags:          tags,
		Extensions:    it.Extensions(),
	}
}

func newItemResps(items []model.FeedItem) []itemResp {
	out := make([]itemResp, 0, len(items))
	for _, it := range items {
		out = append(out, newItemResp(it))
	}
	return out
}

type createFeedReq struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (r createFeedReq) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return mixerrs.E("feed name is required", mixerrs.KindValidation,
			mixerrs.Detail{Field: "name", Error: "required"})
	}
	return nil
}

func (s *Server) postFeed(w http.ResponseWriter, r *http.Request) error {
	req, err := decodeValid[createFeedReq](r)
	if err != nil {
		return err
	}

	feed, err := model.NewFeed("", req.Name, req.URL)
	if err != nil {
		return err
	}
	feed.Description = req.Description
	if err := s.store.CreateFeed(r.Context(), &feed); err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, newFeedResp(feed))
}

func (s *Server) getFeeds(w http.ResponseWriter, r *http.Request) error {
	p := parsePagination(r)
	feeds, total, err := s.store.ListFeeds(r.Context(), p)
	if err != nil {
		return err
	}

	resps := make([]feedResp, 0, len(feeds))
	for _, f := range feeds {
		resps = append(resps, newFeedResp(f))
	}
	return writeJSON(w, http.StatusOK, newPage(resps, p, total))
}

func (s *Server) getFeed(w http.ResponseWriter, r *http.Request) error {
	feed, err := s.store.GetFeed(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, newFeedResp(feed))
}

type updateFeedReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func (r updateFeedReq) Validate() error {
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		return mixerrs.E("feed name must not be empty", mixerrs.KindValidation,
			mixerrs.Detail{Field: "name", Error: "must not be empty"})
	}
	if r.Status != nil {
		if _, err := model.ParseFeedStatus(*r.Status); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) putFeed(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	req, err := decodeValid[updateFeedReq](r)
	if err != nil {
		return err
	}
	args := storage.UpdateFeedArgs{Name: req.Name, Description: req.Description}
	if req.Status != nil {
		st := model.FeedStatus(*req.Status)
		args.Status = &st
	}
	if err := s.store.UpdateFeed(ctx, id, args); err != nil {
		return err
	}

	feed, err := s.store.GetFeed(ctx, id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, newFeedResp(feed))
}

func (s *Server) deleteFeed(w http.ResponseWriter, r *http.Request) error {
	if err := s.store.DeleteFeed(r.Context(), mux.Vars(r)["id"]); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) getFeedItems(w http.ResponseWriter, r *http.Request) error {
	p := parsePagination(r)
	items, total, err := s.store.ListItems(r.Context(), mux.Vars(r)["id"], p)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, newPage(newItemResps(items), p, total))
}

type refreshResp struct {
	Feed  feedResp `json:"feed"`
	Added int      `json:"added"`
}

// postFeedRefresh fetches the feed now. Upstream failures answer 502 with the
// feed left in the error state.
func (s *Server) postFeedRefresh(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	feed, err := s.store.GetFeed(ctx, id)
	if err != nil {
		return err
	}

	added, refreshErr := s.refresher.Refresh(ctx, feed)
	if refreshErr != nil {
		s.log.WarnContext(ctx, "manual refresh failed", "feed_id", id, "error", refreshErr)
		return writeJSON(w, http.StatusBadGateway, errorBody{Error: mixerrs.E(refreshErr)})
	}

	if feed, err = s.store.GetFeed(ctx, id); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, refreshResp{Feed: newFeedResp(feed), Added: added})
}
