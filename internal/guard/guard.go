// Package guard detects prompt-injection attempts in evidence text.
//
// The check is a case-insensitive substring match against a fixed
// pattern list. It blocks on any raw URL, which will flag contracts that
// legitimately reference a vendor website.
package guard

import "strings"

// DefaultPatterns returns the built-in injection patterns.
func DefaultPatterns() []string {
	return []string{
		"ignore previous",
		"disregard",
		"send credentials",
		"http://",
		"https://",
		"email credentials",
		"leak",
	}
}

// Guard matches text against injection patterns.
type Guard struct {
	patterns []string
}

// New creates a guard. With no patterns, DefaultPatterns is used.
// Patterns are lowercased; blank entries are dropped.
func New(patterns ...string) *Guard {
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	normalized := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			normalized = append(normalized, p)
		}
	}
	return &Guard{patterns: normalized}
}

// Match returns the first pattern found in text.
func (g *Guard) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range g.patterns {
		if strings.Contains(lower, p) {
			return p, true
		}
	}
	return "", false
}

// ContainsInjection reports whether any pattern occurs in text.
func (g *Guard) ContainsInjection(text string) bool {
	_, found := g.Match(text)
	return found
}

// Patterns returns a copy of the active patterns.
func (g *Guard) Patterns() []string {
	out := make([]string, len(g.patterns))
	copy(out, g.patterns)
	return out
}
