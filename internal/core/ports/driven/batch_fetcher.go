package driven

import (
	"context"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// BatchFetcher talks to the remote batch service.
// Each call is a single request; retry policy belongs to the caller.
type BatchFetcher interface {
	// Submit starts a batch job for the given resources and returns its remote ID
	Submit(ctx context.Context, resources []string) (string, error)

	// Status reports the state of a batch job. When the job is completed the
	// first page of results is included, with Next set if more pages exist.
	Status(ctx context.Context, jobID string) (*domain.BatchStatus, error)

	// FetchPage follows a pagination cursor returned by Status or a previous page
	FetchPage(ctx context.Context, cursor string) (*domain.BatchPage, error)
}
