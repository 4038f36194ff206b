package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
)

// AuthService handles API authentication
type AuthService interface {
	// IssueToken exchanges the API key for a signed token
	IssueToken(ctx context.Context, key string) (*domain.TokenResponse, error)

	// ValidateToken validates a token and returns the auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// TokenTTL reports how long issued tokens remain valid
	TokenTTL() time.Duration
}
