package driven

import "context"

// DiscoveryRequest describes one enumeration of a remote collection
type DiscoveryRequest struct {
	// Root is the URL the enumeration starts from
	Root string

	// Limit caps the number of resources returned
	Limit int

	// BypassCache asks the remote service to ignore its cached listing
	BypassCache bool
}

// Discoverer enumerates the resources currently present in a remote collection.
// Each call is a single request; the driver retries transient failures.
type Discoverer interface {
	Discover(ctx context.Context, req DiscoveryRequest) ([]string, error)
}
