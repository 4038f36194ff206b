package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Discovery limits accepted by the remote map endpoint
const (
	DefaultDiscoveryLimit = 100_000
	MaxDiscoveryLimit     = 100_000
)

// Collection is one synchronised website. Its ID is the normalised domain and
// keys the persisted state and the writer lock.
type Collection struct {
	ID      string `json:"id"`
	RootURL string `json:"root_url"`
}

// ParseCollection accepts a URL or bare domain and resolves it to a collection.
//
//	https://example.com        -> example.com
//	http://example.com/about   -> example.com
//	www.example.com            -> example.com
//	blog.example.com           -> blog.example.com
func ParseCollection(raw string) (*Collection, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: url cannot be empty", ErrInvalidInput)
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: could not parse domain from %q", ErrInvalidInput, raw)
	}

	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if !strings.Contains(host, ".") {
		return nil, fmt.Errorf("%w: %q does not look like a domain", ErrInvalidInput, host)
	}
	host = strings.TrimPrefix(host, "www.")

	return &Collection{
		ID:      host,
		RootURL: "https://" + host,
	}, nil
}

// ValidateLimit checks a discovery limit, substituting the default for zero
func ValidateLimit(limit int) (int, error) {
	if limit == 0 {
		return DefaultDiscoveryLimit, nil
	}
	if limit < 1 || limit > MaxDiscoveryLimit {
		return 0, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxDiscoveryLimit)
	}
	return limit, nil
}
