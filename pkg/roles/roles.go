// Package roles normalizes raw role claims into canonical role sets.
//
// Identity providers deliver role membership in two shapes, often mixed
// within a single attribute value: plain tokens ("Engineers") and LDAP-style
// distinguished names ("CN=Engineers,OU=Groups,DC=example,DC=com"). This
// package reduces both to lower-cased role identifiers and collects them
// into a Set.
package roles

import (
	"sort"
	"strings"
)

// Set is a set of canonical (lower-cased) role identifiers.
//
// A Set produced by Normalize is already canonical: re-normalizing its
// members yields an equal Set. Sets are request-scoped values; callers
// must not share a Set across goroutines while mutating it.
type Set map[string]struct{}

// NewSet creates a Set from the given identifiers without any
// normalization. Use Normalize for raw attribute values.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts a role identifier into the set.
func (s Set) Add(id string) {
	s[id] = struct{}{}
}

// Has reports whether the set contains the given role identifier.
func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of roles in the set.
func (s Set) Len() int {
	return len(s)
}

// Values returns the role identifiers in sorted order, for deterministic
// logging and for handing the set to external systems as a slice.
func (s Set) Values() []string {
	values := make([]string, 0, len(s))
	for id := range s {
		values = append(values, id)
	}
	sort.Strings(values)
	return values
}

// ContainsAny reports whether the set contains at least one of the given
// identifiers. The candidates are lower-cased before comparison so callers
// may pass configuration values verbatim.
func (s Set) ContainsAny(ids []string) bool {
	for _, id := range ids {
		if s.Has(strings.ToLower(strings.TrimSpace(id))) {
			return true
		}
	}
	return false
}

// dnMarker introduces the common-name component of a distinguished-name
// role token. Matching is case-insensitive ("cn=" and "CN=" both qualify).
const dnMarker = "cn="

// Normalize converts raw role-attribute values into a canonical Set.
//
// Each raw value is split on delimiter into candidate tokens. A token
// containing a CN= marker contributes the substring between the marker and
// the next comma; a token without the marker contributes itself. All
// identifiers are trimmed of surrounding whitespace, lower-cased, and
// deduplicated. Empty tokens contribute nothing.
//
// A CN= token with no following comma is malformed input with no defined
// upstream behavior; Normalize deterministically takes the remainder of
// the token as the identifier. Normalize is idempotent: feeding a Set's
// Values back through it reproduces the same Set.
func Normalize(raw []string, delimiter string) Set {
	s := make(Set)
	for _, value := range raw {
		for _, token := range strings.Split(value, delimiter) {
			if id := roleID(token); id != "" {
				s.Add(id)
			}
		}
	}
	return s
}

// roleID reduces a single candidate token to its canonical role
// identifier, or "" if the token is blank.
func roleID(token string) string {
	token = strings.TrimSpace(token)
	lower := strings.ToLower(token)

	if i := strings.Index(lower, dnMarker); i >= 0 {
		rest := lower[i+len(dnMarker):]
		if comma := strings.Index(rest, ","); comma >= 0 {
			rest = rest[:comma]
		}
		return strings.TrimSpace(rest)
	}
	return lower
}
