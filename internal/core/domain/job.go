package domain

import "time"

// JobStatus is the lifecycle state of a chunk's remote batch job
type JobStatus string

const (
	JobStatusPolling   JobStatus = "polling"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobRecord is the persisted progress of one chunk.
// RemoteJobID is empty until the chunk has been submitted. Results are only
// present when completed and Error only when failed.
type JobRecord struct {
	Key         ChunkKey          `json:"key"`
	RemoteJobID string            `json:"remote_job_id,omitempty"`
	Status      JobStatus         `json:"status"`
	Payload     []string          `json:"payload"`
	Results     []FetchedResource `json:"results,omitempty"`
	Error       string            `json:"error,omitempty"`
	CreditsUsed int               `json:"credits_used,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// IsCompleted reports whether the record holds usable results.
func (r JobRecord) IsCompleted() bool {
	return r.Status == JobStatusCompleted
}

// IsResumable reports whether polling can continue without resubmitting.
func (r JobRecord) IsResumable() bool {
	return r.Status == JobStatusPolling && r.RemoteJobID != ""
}

// RemoteJobStatus is the status string reported by the batch service.
type RemoteJobStatus string

const (
	RemoteJobScraping  RemoteJobStatus = "scraping"
	RemoteJobCompleted RemoteJobStatus = "completed"
	RemoteJobFailed    RemoteJobStatus = "failed"
)

// IsTerminal reports whether the remote job will not change any more.
func (s RemoteJobStatus) IsTerminal() bool {
	return s == RemoteJobCompleted || s == RemoteJobFailed
}

// BatchStatus is one poll response from the batch service.
type BatchStatus struct {
	Status      RemoteJobStatus
	Completed   int
	Total       int
	CreditsUsed int
	Results     []FetchedResource
	Next        string
}

// BatchPage is one page of results fetched through a pagination cursor.
type BatchPage struct {
	Results []FetchedResource
	Next    string
}
