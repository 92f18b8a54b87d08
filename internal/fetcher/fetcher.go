// Package fetcher wraps an upstream feed client with the retry discipline:
// transient failures are retried forever, anything else is returned at once.
package fetcher

import (
	"context"
	"log/slog"

	"twittermoo/internal/backoff"
	"twittermoo/internal/feed"
	"twittermoo/internal/model"
)

// Fetcher fetches timelines and direct messages, riding out provider outages.
type Fetcher struct {
	client  feed.Client
	retrier *backoff.Retrier
	log     *slog.Logger
}

// New creates a Fetcher using the default retry policy and real sleeps.
func New(client feed.Client, log *slog.Logger) *Fetcher {
	return NewWithRetrier(client, backoff.New(backoff.DefaultPolicy(), backoff.Clock{}, feed.IsTransient, log), log)
}

// NewWithRetrier creates a Fetcher with a custom retrier (useful for testing).
func NewWithRetrier(client feed.Client, retrier *backoff.Retrier, log *slog.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		retrier: retrier,
		log:     log,
	}
}

// Timeline returns the home timeline in provider order (newest first).
func (f *Fetcher) Timeline(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	err := f.retrier.Do(ctx, "fetch timeline", func(ctx context.Context) error {
		var err error
		items, err = f.client.Timeline(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	f.log.Debug("timeline fetched", "count", len(items))
	return items, nil
}

// DirectMessages returns recent direct messages.
func (f *Fetcher) DirectMessages(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	err := f.retrier.Do(ctx, "fetch direct messages", func(ctx context.Context) error {
		var err error
		items, err = f.client.DirectMessages(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	f.log.Debug("direct messages fetched", "count", len(items))
	return items, nil
}
