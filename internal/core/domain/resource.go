package domain

import (
	"encoding/json"
	"sort"
)

// ResourceSet is an unordered set of resource identifiers (page URLs).
// Identifiers compare by exact string match; normalisation happens before
// they enter a set.
type ResourceSet map[string]struct{}

// NewResourceSet builds a set from a list of identifiers, dropping duplicates.
func NewResourceSet(ids ...string) ResourceSet {
	s := make(ResourceSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts an identifier.
func (s ResourceSet) Add(id string) {
	s[id] = struct{}{}
}

// Contains reports whether the identifier is in the set.
func (s ResourceSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers.
func (s ResourceSet) Len() int {
	return len(s)
}

// Sorted returns the identifiers in lexicographic order.
func (s ResourceSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// FetchedResource is one resource returned by a completed batch job.
// Document is the raw record produced by the remote service and is passed
// through to the downstream renderer untouched.
type FetchedResource struct {
	ID       string          `json:"id"`
	Document json.RawMessage `json:"document,omitempty"`
}

// DedupeResources keeps the first record seen for each identifier.
// Records without an identifier cannot be matched and are kept as-is.
func DedupeResources(resources []FetchedResource) []FetchedResource {
	seen := make(map[string]struct{}, len(resources))
	out := make([]FetchedResource, 0, len(resources))
	for _, r := range resources {
		if r.ID != "" {
			if _, ok := seen[r.ID]; ok {
				continue
			}
			seen[r.ID] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}
