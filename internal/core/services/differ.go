package services

import "github.com/custodia-labs/sercha-sitesync/internal/core/domain"

// ResourceDiff partitions the resources seen by two discovery runs.
// Each slice is sorted and the three are pairwise disjoint.
type ResourceDiff struct {
	New       []string
	Unchanged []string
	Removed   []string
}

// Diff compares a fresh discovery result against the cached set.
//
//	New       = discovered - cached
//	Unchanged = discovered ∩ cached
//	Removed   = cached - discovered
func Diff(discovered, cached domain.ResourceSet) ResourceDiff {
	d := ResourceDiff{
		New:       []string{},
		Unchanged: []string{},
		Removed:   []string{},
	}

	for _, id := range discovered.Sorted() {
		if cached.Contains(id) {
			d.Unchanged = append(d.Unchanged, id)
		} else {
			d.New = append(d.New, id)
		}
	}
	for _, id := range cached.Sorted() {
		if !discovered.Contains(id) {
			d.Removed = append(d.Removed, id)
		}
	}
	return d
}
