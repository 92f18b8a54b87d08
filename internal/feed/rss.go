package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"twittermoo/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RSS is a Client that reads a timeline published as an RSS or Atom feed.
// Feeds carry no direct messages.
type RSS struct {
	client  HTTPClient
	url     string
	timeout time.Duration
	now     func() time.Time
}

// NewRSS creates an RSS client for the feed at url.
func NewRSS(client HTTPClient, url string) *RSS {
	return &RSS{
		client:  client,
		url:     url,
		timeout: 30 * time.Second,
		now:     time.Now,
	}
}

// Timeline downloads and parses the feed. Items are returned newest first.
func (r *RSS) Timeline(ctx context.Context) ([]model.Item, error) {
	feed, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]model.Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		items = append(items, r.toItem(feed, it))
	}
	// Feeds are usually newest first already; enforce it so the
	// orchestrator can rely on the provider order.
	sortNewestFirst(items)
	return items, nil
}

// DirectMessages always returns an empty list.
func (r *RSS) DirectMessages(context.Context) ([]model.Item, error) {
	return nil, nil
}

func (r *RSS) fetch(ctx context.Context) (*gofeed.Feed, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "twittermoo/2.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("http get: %w: status %d", ErrUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	return feed, nil
}

func (r *RSS) toItem(feed *gofeed.Feed, it *gofeed.Item) model.Item {
	name := feed.Title
	if feed.Author != nil && feed.Author.Name != "" {
		name = feed.Author.Name
	}
	if it.Author != nil && it.Author.Name != "" {
		name = it.Author.Name
	}

	text := strings.TrimSpace(it.Title)
	if text == "" {
		text = strings.TrimSpace(it.Description)
	}

	created := r.now()
	switch {
	case it.PublishedParsed != nil:
		created = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		created = *it.UpdatedParsed
	}

	return model.Item{
		ID:           it.GUID,
		AuthorName:   name,
		AuthorHandle: handleFor(name),
		Text:         text,
		CreatedAt:    created,
	}
}

// handleFor derives a handle from a display name: the first word, without a
// leading "@".
func handleFor(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimPrefix(fields[0], "@")
}

func sortNewestFirst(items []model.Item) {
	slices.SortStableFunc(items, func(a, b model.Item) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
