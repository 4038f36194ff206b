package services

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/sercha-sitesync/internal/core/domain"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sitesync/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService implements the AuthService interface.
// The API has a single shared key; its hash is configured at startup and
// exchanged for short-lived bearer tokens.
type authService struct {
	authAdapter driven.AuthAdapter
	keyHash     string
	tokenTTL    time.Duration
}

// NewAuthService creates a new AuthService.
// A zero tokenTTL defaults to 24 hours.
func NewAuthService(authAdapter driven.AuthAdapter, keyHash string, tokenTTL time.Duration) driving.AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &authService{
		authAdapter: authAdapter,
		keyHash:     keyHash,
		tokenTTL:    tokenTTL,
	}
}

// IssueToken verifies the API key and issues a token
func (s *authService) IssueToken(ctx context.Context, key string) (*domain.TokenResponse, error) {
	if key == "" {
		return nil, domain.ErrInvalidInput
	}
	if s.keyHash == "" || !s.authAdapter.VerifyKey(key, s.keyHash) {
		return nil, domain.ErrUnauthorized
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	token, err := s.authAdapter.GenerateToken(&domain.TokenClaims{
		Subject:   "api",
		IssuedAt:  now.Unix(),
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return nil, err
	}

	return &domain.TokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns the auth context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrTokenInvalid
	}

	if time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	return &domain.AuthContext{Subject: claims.Subject}, nil
}

// TokenTTL reports how long issued tokens remain valid
func (s *authService) TokenTTL() time.Duration {
	return s.tokenTTL
}
