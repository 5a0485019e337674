package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	mixerrs "feedmixer/internal/errors"
)

func writeJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("encode json response: %w", err)
	}
	return nil
}

// validator is a request body that can check itself after decoding.
type validator interface {
	Validate() error
}

// decodeValid decodes a request body and then validates it. Malformed JSON
// is a validation error.
func decodeValid[V validator](r *http.Request) (V, error) {
	var v V
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, mixerrs.E(fmt.Sprintf("decode request: %s", err), mixerrs.KindValidation)
	}
	if err := v.Validate(); err != nil {
		return v, err
	}
	return v, nil
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error *mixerrs.Error `json:"error"`
}

// handlerFuncE is an [http.HandlerFunc] that returns an error. Structured
// errors are answered with their kind's status; anything else becomes a 500.
type handlerFuncE struct {
	log *slog.Logger
	fn  func(w http.ResponseWriter, r *http.Request) error
}

func (h handlerFuncE) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.fn(w, r)
	if err == nil {
		return
	}

	var mErr *mixerrs.Error
	if !errors.As(err, &mErr) || mErr.Kind == mixerrs.KindOther {
		h.log.ErrorContext(r.Context(), "request failed", "error", err)
		mErr = mixerrs.E("internal server error")
	}

	if err := writeJSON(w, mErr.Kind.Status(), errorBody{Error: mErr}); err != nil {
		h.log.ErrorContext(r.Context(), "write error response", "error", err)
	}
}

// errRouter is a mux router that accepts handlers returning errors.
type errRouter struct {
	*mux.Router
	log *slog.Logger
}

func (r errRouter) handleFuncE(path string, f func(w http.ResponseWriter, r *http.Request) error) *mux.Route {
	return r.Handle(path, handlerFuncE{log: r.log, fn: f})
}
