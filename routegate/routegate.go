// SPDX-License-Identifier: LGPL-3.0-or-later

// Package routegate implements the positive/negative glob allow-list that
// decides whether a reassembled request's URL path may reach the origin
// HTTP client.
package routegate

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Gate evaluates a URL path against an unordered list of patterns, each
// optionally "!"-prefixed for negation. A path is allowed when at least one
// positive pattern matches it (or no positive patterns are configured at
// all) and no negative pattern matches it. A matching negative always
// denies, regardless of where it sits relative to a matching positive.
type Gate struct {
	rules       []rule
	hasPositive bool
}

type rule struct {
	pattern string
	deny    bool
}

// New compiles patterns into a Gate. Patterns are validated against
// doublestar's glob syntax up front so a misconfigured pattern fails at
// startup rather than on the first request that would have matched it.
func New(patterns []string) (*Gate, error) {
	g := &Gate{rules: make([]rule, 0, len(patterns))}
	for _, p := range patterns {
		deny := strings.HasPrefix(p, "!")
		clean := strings.TrimPrefix(p, "!")
		if !doublestar.ValidatePattern(clean) {
			return nil, fmt.Errorf("routegate: invalid pattern %q", p)
		}
		if !deny {
			g.hasPositive = true
		}
		g.rules = append(g.rules, rule{pattern: clean, deny: deny})
	}
	return g, nil
}

// Allowed reports whether path is admitted by the gate.
func (g *Gate) Allowed(path string) bool {
	if g == nil {
		return false
	}
	anyPositiveMatches := false
	anyNegativeMatches := false
	for _, r := range g.rules {
		ok, err := doublestar.Match(r.pattern, path)
		if err != nil || !ok {
			continue
		}
		if r.deny {
			anyNegativeMatches = true
		} else {
			anyPositiveMatches = true
		}
	}
	return (!g.hasPositive || anyPositiveMatches) && !anyNegativeMatches
}
