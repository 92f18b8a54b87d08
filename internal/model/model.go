// Package model defines the domain types used across the application.
package model

import (
	"crypto/sha1" //nolint:gosec // fingerprints must match keys written by earlier releases
	"encoding/hex"
	"time"
)

// Item is a single timeline entry or direct message as returned by the upstream provider.
type Item struct {
	ID           string
	AuthorName   string
	AuthorHandle string
	Text         string
	CreatedAt    time.Time
}

// Fingerprint returns the de-duplication key for the item: the hex SHA-1 of
// the text immediately followed by the author's display name.
func (i Item) Fingerprint() string {
	h := sha1.Sum([]byte(i.Text + i.AuthorName)) //nolint:gosec // identity, not security
	return hex.EncodeToString(h[:])
}

// Status is the ledger state of a fingerprint.
type Status string

// Ledger states. The values are what is written to disk.
const (
	StatusUnknown   Status = ""
	StatusSeeded    Status = "s"
	StatusDelivered Status = "p"
)

// String returns a human readable name for logging.
func (s Status) String() string {
	switch s {
	case StatusSeeded:
		return "seeded"
	case StatusDelivered:
		return "delivered"
	default:
		return "unknown"
	}
}

// Valid reports whether s may be written to the ledger.
func (s Status) Valid() bool {
	return s == StatusSeeded || s == StatusDelivered
}

// FilterKind defines the type of filter rule.
type FilterKind string

// Supported filter kinds.
const (
	FilterInclude   FilterKind = "include"
	FilterExclude   FilterKind = "exclude"
	FilterIncludeRe FilterKind = "include_re"
	FilterExcludeRe FilterKind = "exclude_re"
)

// FilterScope defines which part of an item a filter matches against.
type FilterScope string

// Supported filter scopes.
const (
	ScopeText   FilterScope = "text"
	ScopeAuthor FilterScope = "author"
	ScopeAll    FilterScope = "all"
)

// Filter is a single content rule applied to new timeline items.
type Filter struct {
	Kind  FilterKind  `yaml:"kind"`
	Scope FilterScope `yaml:"scope"`
	Value string      `yaml:"value"`
}
