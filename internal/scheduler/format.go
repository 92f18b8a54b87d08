package scheduler

import (
	"fmt"
	"unicode/utf8"

	"twittermoo/internal/model"
)

// OversizePolicy decides what happens to a line longer than the limit.
type OversizePolicy string

// Oversized line policies.
const (
	// OversizeAbort stops the process before anything is sent.
	OversizeAbort OversizePolicy = "abort"
	// OversizeTruncate shortens the line and carries on.
	OversizeTruncate OversizePolicy = "truncate"
)

// ParseOversizePolicy validates a policy name. The empty string means abort.
func ParseOversizePolicy(s string) (OversizePolicy, error) {
	switch OversizePolicy(s) {
	case "", OversizeAbort:
		return OversizeAbort, nil
	case OversizeTruncate:
		return OversizeTruncate, nil
	default:
		return "", fmt.Errorf("unknown oversize policy %q, use abort or truncate", s)
	}
}

// FormatLine renders an item as "<handle> text (YYYYMMDD HHMMSS)".
func FormatLine(item model.Item) string {
	return fmt.Sprintf("<%s> %s (%s)", item.AuthorHandle, item.Text, item.CreatedAt.Format("20060102 150405"))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// headRunes returns at most n leading characters of s.
func headRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// truncate shortens s to limit characters, ending in "...".
func truncate(s string, limit int) string {
	if runeLen(s) <= limit {
		return s
	}
	if limit <= 3 {
		return headRunes(s, limit)
	}
	return headRunes(s, limit-3) + "..."
}

// preview is the short excerpt of an item used in log lines.
func preview(text string) string {
	return truncate(text, 10)
}
