package filter

import (
	"regexp"
	"strings"

	"twittermoo/internal/model"
)

// Gate decides whether a new item is forwarded downstream. Rejected items
// are still recorded as handled and paced like forwarded ones.
type Gate interface {
	Allow(item model.Item) bool
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(item model.Item) bool

// Allow calls f(item).
func (f GateFunc) Allow(item model.Item) bool { return f(item) }

// AllowAll passes every item.
var AllowAll Gate = GateFunc(func(model.Item) bool { return true })

// Chain passes an item only if every gate does.
func Chain(gates ...Gate) Gate {
	return GateFunc(func(item model.Item) bool {
		for _, g := range gates {
			if !g.Allow(item) {
				return false
			}
		}
		return true
	})
}

var mentionRe = regexp.MustCompile(`^@(\w+)\s`)

// Mention returns the handle an item's text is addressed to, if it starts
// with "@handle ".
func Mention(text string) (string, bool) {
	m := mentionRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// MentionGate governs items addressed to someone with a leading "@handle ".
// Friends reports whether the addressee is someone whose conversations are
// worth forwarding; a nil Friends forwards every mention.
type MentionGate struct {
	Friends func(handle string) bool
}

// Allow passes items that are not mentions, and mentions Friends accepts.
func (g MentionGate) Allow(item model.Item) bool {
	handle, ok := Mention(item.Text)
	if !ok || g.Friends == nil {
		return true
	}
	return g.Friends(handle)
}

// FriendList returns a case-insensitive membership test for handles.
// An empty list yields nil, which MentionGate treats as "everyone".
func FriendList(handles []string) func(string) bool {
	if len(handles) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(handles))
	for _, h := range handles {
		set[strings.ToLower(strings.TrimPrefix(h, "@"))] = struct{}{}
	}
	return func(handle string) bool {
		_, ok := set[strings.ToLower(handle)]
		return ok
	}
}
