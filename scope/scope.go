// Package scope implements fail-closed set-membership checks over the
// permission scopes granted to an API key.
//
// Scopes are plain strings ("read", "billing.write"). Membership is what
// matters; order never does. An empty granted set means "no permissions" —
// absence is the fail-closed default, and an empty requested set is likewise
// never satisfied.
//
// # Architecture boundaries
//
// This package owns membership predicates and normalization only. Which scopes
// a credential carries is decided at issuance by the Engine; this package never
// consults storage.
package scope

import (
	"sort"
	"strings"
)

// Normalize trims whitespace, drops empties, removes duplicates, and sorts.
// Stored scope sets go through Normalize exactly once, at issuance.
func Normalize(scopes []string) []string {
	if len(scopes) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	if len(out) == 0 {
		return nil
	}

	sort.Strings(out)
	return out
}

// Has reports whether the granted set contains the single requested scope.
func Has(granted []string, requested string) bool {
	if len(granted) == 0 || requested == "" {
		return false
	}

	for _, s := range granted {
		if s == requested {
			return true
		}
	}
	return false
}

// HasAny reports whether at least one requested scope is granted.
func HasAny(granted []string, requested []string) bool {
	if len(granted) == 0 || len(requested) == 0 {
		return false
	}

	for _, r := range requested {
		if Has(granted, r) {
			return true
		}
	}
	return false
}

// HasAll reports whether every requested scope is granted. An empty requested
// set is not satisfied: callers must name what they require.
func HasAll(granted []string, requested []string) bool {
	if len(granted) == 0 || len(requested) == 0 {
		return false
	}

	for _, r := range requested {
		if !Has(granted, r) {
			return false
		}
	}
	return true
}
