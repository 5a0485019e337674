// Package ratelimit implements a sliding-window request limiter keyed by client.
package ratelimit

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxClients bounds how many client windows are tracked at once.
// The least recently seen client is evicted first.
const DefaultMaxClients = 10_000

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetIn is the time until the oldest request in the window expires.
	ResetIn time.Duration
}

// Limiter allows at most limit requests per client within a sliding window.
type Limiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	clients *lru.Cache[string, []time.Time]
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New returns a limiter tracking up to maxClients clients. A non-positive
// maxClients uses DefaultMaxClients.
func New(limit int, window time.Duration, maxClients int, opts ...Option) (*Limiter, error) {
	if maxClients <= 0 {
		maxClients = DefaultMaxClients
	}
	cache, err := lru.New[string, []time.Time](maxClients)
	if err != nil {
		return nil, err
	}
	l := &Limiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		clients: cache,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow records a request for key when it fits in the window. Rejected
// requests are not recorded.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	hits, _ := l.clients.Get(key)
	hits = l.prune(hits, now)

	var resetIn time.Duration
	if len(hits) > 0 {
		resetIn = max(0, l.window-now.Sub(hits[0]))
	}

	if len(hits) >= l.limit {
		l.clients.Add(key, hits)
		return Decision{Limit: l.limit, ResetIn: resetIn}
	}

	hits = append(hits, now)
	if len(hits) == 1 {
		resetIn = l.window
	}
	l.clients.Add(key, hits)
	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - len(hits),
		ResetIn:   resetIn,
	}
}

// prune drops timestamps that fell out of the window. hits is ordered oldest first.
func (l *Limiter) prune(hits []time.Time, now time.Time) []time.Time {
	i := 0
	for i < len(hits) && now.Sub(hits[i]) >= l.window {
		i++
	}
	if i == 0 {
		return hits
	}
	return append([]time.Time(nil), hits[i:]...)
}
