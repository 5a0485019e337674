package api

import (
	"net/http"
	"strconv"

	"feedmixer/internal/storage"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// paginationMeta holds pagination metadata for API responses.
type paginationMeta struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// page is one page of a listing.
type page[T any] struct {
	Items      []T            `json:"items"`
	Pagination paginationMeta `json:"pagination"`
}

// parsePagination reads ?limit=&offset=. Out of range values fall back to
// the defaults.
func parsePagination(r *http.Request) storage.Page {
	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	offset, _ := strconv.Atoi(query.Get("offset"))
	if offset < 0 {
		offset = 0
	}

	return storage.Page{Limit: limit, Offset: offset}
}

func newPage[T any](items []T, p storage.Page, total int) page[T] {
	if items == nil {
		items = []T{}
	}
	return page[T]{
		Items:      items,
		Pagination: paginationMeta{Limit: p.Limit, Offset: p.Offset, Total: total},
	}
}
