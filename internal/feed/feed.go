// Package feed provides clients for the upstream timeline providers.
package feed

import (
	"context"
	"errors"
	"io"
	"net"

	"twittermoo/internal/model"
)

// ErrUnavailable marks a provider failure that is expected to clear up on
// its own: rate limiting, maintenance, overload.
var ErrUnavailable = errors.New("provider unavailable")

// Client is an upstream timeline provider.
type Client interface {
	// Timeline returns the current home timeline, newest first.
	Timeline(ctx context.Context) ([]model.Item, error)
	// DirectMessages returns recent direct messages.
	DirectMessages(ctx context.Context) ([]model.Item, error)
}

// IsTransient reports whether err is worth retrying: provider
// unavailability, timeouts, refused or dropped connections.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
