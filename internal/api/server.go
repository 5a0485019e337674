// Package api serves the HTTP interface for managing feeds, mixers and rules
// and for reading a mixer's mixed output.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"feedmixer/internal/mixer"
	"feedmixer/internal/model"
	"feedmixer/internal/ratelimit"
	"feedmixer/internal/storage"
)

// Refresher fetches a feed and stores its new items.
type Refresher interface {
	Refresh(ctx context.Context, feed model.Feed) (int, error)
}

// ServerConfig holds the HTTP settings.
type ServerConfig struct {
	Port        int
	CORSOrigin  string
	Environment string
	Version     string

	// Paths that bypass the rate limiter.
	RateLimitExclude []string
}

// Server is the HTTP API.
type Server struct {
	*http.Server

	store     storage.Storage
	mixer     *mixer.Service
	refresher Refresher
	log       *slog.Logger

	environment string
	version     string
	started     time.Time
	now         func() time.Time
}

// NewServer wires the routes. A nil limiter disables rate limiting.
func NewServer(
	cfg ServerConfig,
	store storage.Storage,
	svc *mixer.Service,
	refresher Refresher,
	limiter *ratelimit.Limiter,
	log *slog.Logger,
) *Server {
	r := errRouter{Router: mux.NewRouter(), log: log}

	srvr := &Server{
		store:       store,
		mixer:       svc,
		refresher:   refresher,
		log:         log,
		environment: cfg.Environment,
		version:     cfg.Version,
		started:     time.Now(),
		now:         time.Now,
	}

	origin := cfg.CORSOrigin
	if origin == "" {
		origin = "*"
	}
	srvr.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		Handler: handlers.CORS(
			handlers.AllowedOrigins([]string{origin}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
			handlers.AllowedHeaders([]string{"content-type"}),
		)(r),
	}

	r.Use(accessLog(log))
	if limiter != nil {
		r.Use(rateLimit(limiter, cfg.RateLimitExclude, log))
	}

	r.handleFuncE("/health", srvr.getHealth).Methods(http.MethodGet)

	// Feeds
	r.handleFuncE("/feeds", srvr.postFeed).Methods(http.MethodPost)
	r.handleFuncE("/feeds", srvr.getFeeds).Methods(http.MethodGet)
	r.handleFuncE("/feeds/{id}", srvr.getFeed).Methods(http.MethodGet)
	r.handleFuncE("/feeds/{id}", srvr.putFeed).Methods(http.MethodPut)
	r.handleFuncE("/feeds/{id}", srvr.deleteFeed).Methods(http.MethodDelete)
	r.handleFuncE("/feeds/{id}/items", srvr.getFeedItems).Methods(http.MethodGet)
	r.handleFuncE("/feeds/{id}/refresh", srvr.postFeedRefresh).Methods(http.MethodPost)

	// Mixers
	r.handleFuncE("/mixers", srvr.postMixer).Methods(http.MethodPost)
	r.handleFuncE("/mixers", srvr.getMixers).Methods(http.MethodGet)
	r.handleFuncE("/mixers/{id}", srvr.getMixer).Methods(http.MethodGet)
	r.handleFuncE("/mixers/{id}", srvr.putMixer).Methods(http.MethodPut)
	r.handleFuncE("/mixers/{id}", srvr.deleteMixer).Methods(http.MethodDelete)
	r.handleFuncE("/mixers/{id}/feeds", srvr.postMixerFeed).Methods(http.MethodPost)
	r.handleFuncE("/mixers/{id}/feeds/{feedID}", srvr.deleteMixerFeed).Methods(http.MethodDelete)
	r.handleFuncE("/mixers/{id}/items", srvr.getMixedItems).Methods(http.MethodGet)

	// Rules
	r.handleFuncE("/mixers/{id}/rules", srvr.postRule).Methods(http.MethodPost)
	r.handleFuncE("/mixers/{id}/rules", srvr.getRules).Methods(http.MethodGet)
	r.handleFuncE("/rules/{id}", srvr.getRule).Methods(http.MethodGet)
	r.handleFuncE("/rules/{id}", srvr.putRule).Methods(http.MethodPut)
	r.handleFuncE("/rules/{id}", srvr.deleteRule).Methods(http.MethodDelete)

	log.Debug("configured api server", "port", cfg.Port)

	return srvr
}
