// Package ref builds type-qualified entity references.
package ref

import "strings"

const sep = "#"

// Of returns the reference for an entity (e.g., "author#uuid").
func Of(entityType, id string) string {
	return entityType + sep + id
}

// Parse splits a reference into its type and id.
// The id may itself contain the separator; only the first one splits.
func Parse(r string) (entityType, id string, ok bool) {
	i := strings.Index(r, sep)
	if i <= 0 || i == len(r)-1 {
		return "", "", false
	}
	return r[:i], r[i+1:], true
}

// Set tracks references visited during one traversal.
type Set map[string]struct{}

// Add records r and reports whether it was new.
func (s Set) Add(r string) bool {
	if _, seen := s[r]; seen {
		return false
	}
	s[r] = struct{}{}
	return true
}

// Has reports whether r was recorded.
func (s Set) Has(r string) bool {
	_, ok := s[r]
	return ok
}
