package domain

import (
	"errors"
	"fmt"
	"net"
	"testing"
)

func TestIsTransient(t *testing.T) {
	dialErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429", &RemoteError{Op: "map", StatusCode: 429}, true},
		{"500", &RemoteError{Op: "map", StatusCode: 500}, true},
		{"502", &RemoteError{Op: "map", StatusCode: 502}, true},
		{"503", &RemoteError{Op: "map", StatusCode: 503}, true},
		{"504", &RemoteError{Op: "map", StatusCode: 504}, true},
		{"400", &RemoteError{Op: "map", StatusCode: 400}, false},
		{"401", &RemoteError{Op: "map", StatusCode: 401}, false},
		{"404", &RemoteError{Op: "map", StatusCode: 404}, false},
		{"malformed body", &RemoteError{Op: "map", StatusCode: 200, Message: "decode"}, false},
		{"network", &RemoteError{Op: "map", Err: dialErr}, true},
		{"wrapped network", fmt.Errorf("submit: %w", &RemoteError{Op: "submit", Err: dialErr}), true},
		{"bare net error", dialErr, true},
		{"plain", errors.New("nope"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRemoteError_Error(t *testing.T) {
	e := &RemoteError{Op: "poll", StatusCode: 503, Message: "busy"}
	if e.Error() != "poll: remote status 503: busy" {
		t.Errorf("unexpected message %q", e.Error())
	}
	inner := errors.New("eof")
	e = &RemoteError{Op: "poll", Err: inner}
	if !errors.Is(e, inner) {
		t.Error("expected Unwrap to expose the cause")
	}
}
