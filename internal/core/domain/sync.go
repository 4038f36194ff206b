package domain

import (
	"fmt"
	"sort"
	"time"
)

// SyncMode selects how a run treats the remote collection and the local cache
type SyncMode string

const (
	// SyncModeIncremental discovers, diffs against the last run and fetches only new resources
	SyncModeIncremental SyncMode = "incremental"
	// SyncModeFullRefresh discovers with the remote cache bypassed and refetches everything
	SyncModeFullRefresh SyncMode = "full-refresh"
	// SyncModeCacheOnly makes no remote calls and returns the cached collection
	SyncModeCacheOnly SyncMode = "cache-only"
)

// ParseSyncMode converts user input into a SyncMode. Empty input selects incremental.
func ParseSyncMode(s string) (SyncMode, error) {
	switch SyncMode(s) {
	case "", SyncModeIncremental:
		return SyncModeIncremental, nil
	case SyncModeFullRefresh:
		return SyncModeFullRefresh, nil
	case SyncModeCacheOnly:
		return SyncModeCacheOnly, nil
	default:
		return "", fmt.Errorf("%w: unknown sync mode %q", ErrInvalidInput, s)
	}
}

// StateVersion is the current layout of the persisted state document.
const StateVersion = 1

// DiscoverySnapshot is the resource set seen by the last discovery call,
// together with the request that produced it.
type DiscoverySnapshot struct {
	Resources    []string  `json:"resources"`
	Root         string    `json:"root,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Set returns the snapshot's resources as a set.
func (d DiscoverySnapshot) Set() ResourceSet {
	return NewResourceSet(d.Resources...)
}

// SyncState is the root persisted document for one collection.
// The driver owns it for the duration of a run; collaborators only mutate
// JobRecords and DeletionCandidates.
type SyncState struct {
	Version            int                          `json:"version"`
	LastDiscovered     DiscoverySnapshot            `json:"last_discovered"`
	JobRecords         map[ChunkKey]JobRecord       `json:"jobs"`
	DeletionCandidates map[string]DeletionCandidate `json:"deletion_candidates"`
}

// NewSyncState returns the empty document used on first run or after corruption.
func NewSyncState() *SyncState {
	return &SyncState{
		Version:            StateVersion,
		JobRecords:         make(map[ChunkKey]JobRecord),
		DeletionCandidates: make(map[string]DeletionCandidate),
	}
}

// LiveResources returns the resources the collection still considers present:
// the last discovery plus pending deletion candidates.
func (s *SyncState) LiveResources() ResourceSet {
	live := s.LastDiscovered.Set()
	for id := range s.DeletionCandidates {
		live.Add(id)
	}
	return live
}

// StaleResources returns chunk members that are no longer live. A chunk
// record outlives a member that was confirmed deleted as long as another
// member is still present.
func (s *SyncState) StaleResources() ResourceSet {
	live := s.LiveResources()
	stale := make(ResourceSet)
	for _, rec := range s.JobRecords {
		for _, id := range rec.Payload {
			if !live.Contains(id) {
				stale.Add(id)
			}
		}
	}
	return stale
}

// CompletedResults returns the results held by completed job records,
// deduplicated by resource ID and without stale resources. Records are
// visited in key order so the output is stable.
func (s *SyncState) CompletedResults() []FetchedResource {
	keys := make([]string, 0, len(s.JobRecords))
	for key, rec := range s.JobRecords {
		if rec.IsCompleted() {
			keys = append(keys, string(key))
		}
	}
	sort.Strings(keys)

	stale := s.StaleResources()
	var all []FetchedResource
	for _, key := range keys {
		for _, r := range s.JobRecords[ChunkKey(key)].Results {
			if !stale.Contains(r.ID) {
				all = append(all, r)
			}
		}
	}
	return DedupeResources(all)
}

// CoveredResources returns the resources that belong to a completed chunk,
// whether or not the remote service returned a record for them.
func (s *SyncState) CoveredResources() ResourceSet {
	covered := make(ResourceSet)
	for _, rec := range s.JobRecords {
		if !rec.IsCompleted() {
			continue
		}
		for _, id := range rec.Payload {
			covered.Add(id)
		}
	}
	return covered
}

// PendingDeletions lists deletion candidates below threshold, sorted by ID.
func (s *SyncState) PendingDeletions(threshold int) []PendingDeletion {
	out := make([]PendingDeletion, 0, len(s.DeletionCandidates))
	for id, c := range s.DeletionCandidates {
		out = append(out, PendingDeletion{ID: id, Misses: c.ConsecutiveMisses, Threshold: threshold})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SyncRequest describes one synchronisation run
type SyncRequest struct {
	Collection string   `json:"collection"`
	RootURL    string   `json:"root_url"`
	Mode       SyncMode `json:"mode"`
	Limit      int      `json:"limit,omitempty"`
	MaxPages   int      `json:"max_pages,omitempty"`
}

// SyncStats holds counters for a run
type SyncStats struct {
	Discovered       int `json:"discovered"`
	New              int `json:"new"`
	Unchanged        int `json:"unchanged"`
	Removed          int `json:"removed"`
	Queued           int `json:"queued"`
	Deferred         int `json:"deferred"`
	Fetched          int `json:"fetched"`
	Reused           int `json:"reused"`
	ChunksTotal      int `json:"chunks_total"`
	ChunksCached     int `json:"chunks_cached"`
	ChunksCompleted  int `json:"chunks_completed"`
	ChunksFailed     int `json:"chunks_failed"`
	CreditsUsed      int `json:"credits_used"`
	EstimatedCredits int `json:"estimated_credits"`
}

// SyncResult is handed to the downstream renderer: the final resource list,
// the resources it should remove, and the resources that are missing or
// waiting for deletion confirmation.
type SyncResult struct {
	RunID              string            `json:"run_id"`
	Collection         string            `json:"collection"`
	Mode               SyncMode          `json:"mode"`
	Resources          []FetchedResource `json:"resources"`
	ConfirmedDeletions []string          `json:"confirmed_deletions"`
	Incomplete         []string          `json:"incomplete"`
	PendingDeletions   []PendingDeletion `json:"pending_deletions"`
	Stats              SyncStats         `json:"stats"`
	Duration           float64           `json:"duration_seconds"`
}

// Complete reports whether every queued resource was fetched.
func (r *SyncResult) Complete() bool {
	return len(r.Incomplete) == 0
}

// StateSummary is a read-only view of a collection's persisted state
type StateSummary struct {
	Collection       string            `json:"collection"`
	Discovered       int               `json:"discovered"`
	DiscoveredAt     *time.Time        `json:"discovered_at,omitempty"`
	JobsCompleted    int               `json:"jobs_completed"`
	JobsPolling      int               `json:"jobs_polling"`
	JobsFailed       int               `json:"jobs_failed"`
	CachedResources  int               `json:"cached_resources"`
	PendingDeletions []PendingDeletion `json:"pending_deletions"`
}
