// Package delivery sends formatted lines to the configured sink and keeps
// retrying until each one gets through.
package delivery

import (
	"context"
	"log/slog"

	"twittermoo/internal/backoff"
)

// Sink writes one line to a downstream destination.
type Sink interface {
	Send(ctx context.Context, line string) error
}

// Channel delivers lines through a Sink. Failed sends are retried under the
// backoff policy until they succeed or ctx is cancelled; nothing is dropped.
type Channel struct {
	sink    Sink
	retrier *backoff.Retrier
	log     *slog.Logger
}

// NewChannel creates a Channel with the default policy and real sleeps.
func NewChannel(sink Sink, log *slog.Logger) *Channel {
	return NewChannelWithRetrier(sink, backoff.New(backoff.DefaultPolicy(), backoff.Clock{}, nil, log), log)
}

// NewChannelWithRetrier creates a Channel with a custom retrier (useful for testing).
func NewChannelWithRetrier(sink Sink, retrier *backoff.Retrier, log *slog.Logger) *Channel {
	return &Channel{
		sink:    sink,
		retrier: retrier,
		log:     log,
	}
}

// Deliver sends line, blocking until it has been accepted by the sink.
// It only fails when ctx is cancelled.
func (c *Channel) Deliver(ctx context.Context, line string) error {
	err := c.retrier.Do(ctx, "deliver", func(ctx context.Context) error {
		return c.sink.Send(ctx, line)
	})
	if err != nil {
		return err
	}
	c.log.Debug("delivered", "line", line)
	return nil
}

// Tag prefixes line with the shared-secret marker understood by the relay.
// An empty secret leaves the line unchanged.
func Tag(secret, line string) string {
	if secret == "" {
		return line
	}
	return "%/" + secret + "/% " + line
}
