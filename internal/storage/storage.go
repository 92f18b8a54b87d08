// Package storage defines the fingerprint ledger interface and its implementations.
package storage

import (
	"context"

	"twittermoo/internal/model"
)

// Storage is the persistent de-duplication ledger.
//
// Set must be durable when it returns and must never move a key away from
// model.StatusDelivered.
type Storage interface {
	Get(ctx context.Context, fingerprint string) (model.Status, error)
	Set(ctx context.Context, fingerprint string, status model.Status) error
	Counts(ctx context.Context) (map[model.Status]int, error)

	Close() error
}
