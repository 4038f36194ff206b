package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSyncInProgress indicates another writer holds the collection
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrLockLost indicates the collection lock could not be kept for the whole run
	ErrLockLost = errors.New("collection lock lost")

	// ErrPollTimeout indicates a batch job did not reach a terminal state in time
	ErrPollTimeout = errors.New("poll_timeout")

	// ErrBatchFailed indicates the remote service reported the batch job as failed
	ErrBatchFailed = errors.New("batch_failed")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrQueueFull indicates the task queue cannot accept more work
	ErrQueueFull = errors.New("task queue full")
)
