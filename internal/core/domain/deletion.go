package domain

import "time"

// DeletionCandidate tracks a resource that has been absent from consecutive
// discovery runs. It is dropped as soon as the resource reappears, and turned
// into a confirmed deletion once the miss count reaches the threshold.
type DeletionCandidate struct {
	ID                string    `json:"id"`
	ConsecutiveMisses int       `json:"consecutive_misses"`
	FirstMissingAt    time.Time `json:"first_missing_at"`
	LastMissingAt     time.Time `json:"last_missing_at"`
}

// PendingDeletion is the observable view of a candidate below threshold.
type PendingDeletion struct {
	ID        string `json:"id"`
	Misses    int    `json:"misses"`
	Threshold int    `json:"threshold"`
}
