package domain

import (
	"errors"
	"fmt"
	"net"
	"net/http"
)

// RemoteError describes a failed call to the remote discovery/fetch service.
// StatusCode is zero when the request never produced a response.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode == 0 && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: remote status %d: %s", e.Op, e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("%s: remote status %d", e.Op, e.StatusCode)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsTransientStatus reports whether an HTTP status indicates rate limiting or
// a transient server failure.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsTransient classifies an error from a remote call.
// Network timeouts, connection failures, rate limiting and 5xx gateway errors
// are transient; 4xx client errors and malformed responses are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		if remoteErr.StatusCode != 0 {
			return IsTransientStatus(remoteErr.StatusCode)
		}
		if remoteErr.Err == nil {
			return false
		}
		err = remoteErr.Err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return remoteErr != nil
}
