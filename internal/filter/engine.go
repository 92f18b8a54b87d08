// Package filter decides which new timeline items are forwarded.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"twittermoo/internal/model"
)

// rule is a filter prepared for matching: words are lowercased and
// patterns compiled case-insensitive once, when the Rules are built.
type rule struct {
	include bool
	scope   model.FilterScope
	word    string
	re      *regexp.Regexp
}

func (r rule) matches(item model.Item) bool {
	text := textForScope(item, r.scope)
	if r.re != nil {
		return r.re.MatchString(text)
	}
	return strings.Contains(text, r.word)
}

// Rules is a Gate over include/exclude filters. An item passes when no
// exclude rule matches and, if there are include rules, at least one of
// them does. An empty rule set passes everything.
type Rules struct {
	includes []rule
	excludes []rule
}

// NewRules validates and compiles filters.
func NewRules(filters []model.Filter) (*Rules, error) {
	r := &Rules{}
	for i, f := range filters {
		if err := Validate(f); err != nil {
			return nil, fmt.Errorf("filter %d: %w", i+1, err)
		}
		compiled := rule{scope: f.Scope}
		switch f.Kind {
		case model.FilterIncludeRe, model.FilterExcludeRe:
			compiled.re = regexp.MustCompile("(?i)" + f.Value)
		default:
			compiled.word = strings.ToLower(f.Value)
		}
		switch f.Kind {
		case model.FilterInclude, model.FilterIncludeRe:
			compiled.include = true
			r.includes = append(r.includes, compiled)
		default:
			r.excludes = append(r.excludes, compiled)
		}
	}
	return r, nil
}

// Len returns the number of rules.
func (r *Rules) Len() int {
	return len(r.includes) + len(r.excludes)
}

// Allow reports whether item passes the rules.
func (r *Rules) Allow(item model.Item) bool {
	for _, ex := range r.excludes {
		if ex.matches(item) {
			return false
		}
	}
	if len(r.includes) == 0 {
		return true
	}
	for _, in := range r.includes {
		if in.matches(item) {
			return true
		}
	}
	return false
}

func textForScope(item model.Item, scope model.FilterScope) string {
	switch scope {
	case model.ScopeText:
		return strings.ToLower(item.Text)
	case model.ScopeAuthor:
		return strings.ToLower(item.AuthorName + " " + item.AuthorHandle)
	default:
		return strings.ToLower(item.AuthorName + " " + item.AuthorHandle + " " + item.Text)
	}
}

// Validate checks a filter's kind, scope and value. Regex values must
// compile.
func Validate(f model.Filter) error {
	if f.Value == "" {
		return fmt.Errorf("filter value is required")
	}
	switch f.Scope {
	case model.ScopeText, model.ScopeAuthor, model.ScopeAll, "":
	default:
		return fmt.Errorf("unknown filter scope %q", string(f.Scope))
	}
	switch f.Kind {
	case model.FilterInclude, model.FilterExclude:
	case model.FilterIncludeRe, model.FilterExcludeRe:
		if _, err := regexp.Compile("(?i)" + f.Value); err != nil {
			return fmt.Errorf("invalid regex %q: %w", f.Value, err)
		}
	default:
		return fmt.Errorf("unknown filter kind %q", string(f.Kind))
	}
	return nil
}
