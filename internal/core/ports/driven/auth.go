package driven

import "github.com/custodia-labs/sercha-sitesync/internal/core/domain"

// AuthAdapter handles the cryptographic side of API authentication.
type AuthAdapter interface {
	// Key operations
	HashKey(key string) (string, error)
	VerifyKey(key, hash string) bool

	// Token operations
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
