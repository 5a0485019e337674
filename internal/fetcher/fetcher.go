// Package fetcher downloads feeds and converts their entries into feed items.
package fetcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"github.com/sethvargo/go-retry"

	"feedmixer/internal/model"
)

const (
	maxBodyBytes = 5 * 1024 * 1024
	userAgent    = "FeedMixer/1.0"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads and parses RSS, Atom and JSON feeds.
type Fetcher struct {
	client  HTTPClient
	backoff func() retry.Backoff
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithBackoff replaces the retry policy. The function is called once per
// Fetch because backoffs carry state.
func WithBackoff(b func() retry.Backoff) Option {
	return func(f *Fetcher) {
		f.backoff = b
	}
}

// New creates a Fetcher with the given HTTP client. Transient failures are
// retried three times with exponential backoff.
func New(client HTTPClient, opts ...Option) *Fetcher {
	f := &Fetcher{
		client: client,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(3, retry.NewExponential(500*time.Millisecond))
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// StatusError reports a non-200 response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Fetch downloads and parses the feed at url. Network errors and 5xx or 429
// responses are retried; other failures return immediately.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*gofeed.Feed, error) {
	var body []byte
	err := retry.Do(ctx, f.backoff(), func(ctx context.Context) error {
		b, err := f.download(ctx, url)
		var statusErr *StatusError
		switch {
		case err == nil:
			body = b
			return nil
		case errors.As(err, &statusErr):
			if statusErr.Code >= http.StatusInternalServerError || statusErr.Code == http.StatusTooManyRequests {
				return retry.RetryableError(err)
			}
			return err
		case ctx.Err() != nil:
			return err
		default:
			return retry.RetryableError(err)
		}
	})
	if err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// ItemGUID returns the GUID for a feed entry.
// If the entry has no GUID, a SHA-256 hash of title+link is used.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

var (
	stripPolicy   = bluemonday.StrictPolicy()
	contentPolicy = bluemonday.UGCPolicy()
)

// ToItems converts parsed entries into feed items owned by feedID. Titles are
// stripped of markup and content is sanitized. Entries without a date are
// stamped with now.
func ToItems(feed *gofeed.Feed, feedID string, now time.Time) []model.FeedItem {
	items := make([]model.FeedItem, 0, len(feed.Items))
	for _, entry := range feed.Items {
		content := entry.Content
		if content == "" {
			content = entry.Description
		}

		it := model.NewFeedItem("",
			strings.TrimSpace(stripPolicy.Sanitize(entry.Title)),
			strings.TrimSpace(contentPolicy.Sanitize(content)),
			entry.Link,
			published(entry, now),
		)
		it.FeedSourceID = feedID
		it.GUID = ItemGUID(entry)
		it.Author = author(entry)
		for _, c := range entry.Categories {
			if c = strings.TrimSpace(c); c != "" {
				it.AddTag(c)
			}
		}
		items = append(items, it)
	}
	return items
}

func published(entry *gofeed.Item, now time.Time) time.Time {
	switch {
	case entry.PublishedParsed != nil:
		return entry.PublishedParsed.UTC()
	case entry.UpdatedParsed != nil:
		return entry.UpdatedParsed.UTC()
	}
	return now.UTC()
}

func author(entry *gofeed.Item) string {
	if entry.Author != nil && entry.Author.Name != "" {
		return entry.Author.Name
	}
	for _, a := range entry.Authors {
		if a != nil && a.Name != "" {
			return a.Name
		}
	}
	return ""
}
