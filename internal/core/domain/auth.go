package domain

import "time"

// TokenClaims represents the API token payload
type TokenClaims struct {
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// AuthContext contains the authenticated caller for request context
type AuthContext struct {
	Subject string `json:"subject"`
}

// TokenRequest is the body of a token exchange
type TokenRequest struct {
	Key string `json:"key"`
}

// TokenResponse is returned after a successful token exchange
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
