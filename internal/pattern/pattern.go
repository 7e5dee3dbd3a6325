// Package pattern implements the shell-glob matching used by manual rules.
package pattern

import (
	"regexp"
	"strings"
	"sync"

	"receipt-sentinel/internal/model"
)

// compiled caches translated patterns; rule sets are small and stable, so
// the cache is unbounded.
var (
	mu       sync.RWMutex
	compiled = make(map[string]*regexp.Regexp)
)

// Match reports whether text matches the shell-glob pattern. `*` matches any
// run of characters, `?` matches a single character, and the comparison is
// case-insensitive over the whole string. An empty pattern matches nothing;
// callers treat an absent pattern as vacuously true before calling.
func Match(pattern, text string) bool {
	if pattern == "" {
		return false
	}

	re, err := compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(strings.ToLower(text))
}

func compile(pattern string) (*regexp.Regexp, error) {
	mu.RLock()
	re, ok := compiled[pattern]
	mu.RUnlock()
	if ok {
		return re, nil
	}

	var b strings.Builder
	b.WriteString(`^`)
	for _, r := range strings.ToLower(pattern) {
		switch r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}

	mu.Lock()
	compiled[pattern] = re
	mu.Unlock()
	return re, nil
}

// RuleMatches evaluates a manual rule against a sender and subject. Each set
// pattern must match its field; an unset pattern is vacuously true. A rule
// with neither pattern set never matches.
func RuleMatches(rule *model.ManualRule, sender, subject string) bool {
	if !rule.Usable() {
		return false
	}
	if rule.EmailPattern != "" && !Match(rule.EmailPattern, sender) {
		return false
	}
	if rule.SubjectPattern != "" && !Match(rule.SubjectPattern, subject) {
		return false
	}
	return true
}
