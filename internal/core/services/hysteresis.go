package services

import (
	"sort"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// DeletionTracker absorbs transient discovery misses. A resource is only
// confirmed deleted after it has been missing from threshold consecutive runs.
type DeletionTracker struct {
	threshold int
	now       func() time.Time
}

// NewDeletionTracker creates a tracker. A nil now defaults to time.Now.
func NewDeletionTracker(threshold int, now func() time.Time) *DeletionTracker {
	if threshold < 1 {
		threshold = 1
	}
	if now == nil {
		now = time.Now
	}
	return &DeletionTracker{threshold: threshold, now: now}
}

// Threshold returns the number of consecutive misses needed to confirm a deletion.
func (t *DeletionTracker) Threshold() int {
	return t.threshold
}

// Clear drops every candidate that reappeared in discovered. Full-refresh
// runs use it alone: they reset misses but never add or confirm any.
func (t *DeletionTracker) Clear(candidates map[string]domain.DeletionCandidate, discovered domain.ResourceSet) {
	for id := range candidates {
		if discovered.Contains(id) {
			delete(candidates, id)
		}
	}
}

// Update applies one run's discovery outcome to candidates, which is modified
// in place, and returns the confirmed deletions in sorted order.
//
// A resource that reappears loses all accumulated misses. A resource in
// removed gains one miss, or becomes a candidate with one miss. Candidates
// reaching the threshold are dropped from the map and returned.
func (t *DeletionTracker) Update(
	candidates map[string]domain.DeletionCandidate,
	removed []string,
	discovered domain.ResourceSet,
) []string {
	t.Clear(candidates, discovered)

	now := t.now().UTC()
	for _, id := range removed {
		if discovered.Contains(id) {
			continue
		}
		c, ok := candidates[id]
		if ok {
			c.ConsecutiveMisses++
			c.LastMissingAt = now
		} else {
			c = domain.DeletionCandidate{
				ID:                id,
				ConsecutiveMisses: 1,
				FirstMissingAt:    now,
				LastMissingAt:     now,
			}
		}
		candidates[id] = c
	}

	confirmed := []string{}
	for id, c := range candidates {
		if c.ConsecutiveMisses >= t.threshold {
			confirmed = append(confirmed, id)
			delete(candidates, id)
		}
	}
	sort.Strings(confirmed)
	return confirmed
}
