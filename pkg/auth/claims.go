// Package auth provides JWT-based authentication for folio-sync.
// Token issuance (magic links, refresh) lives in the external identity
// service; this package only validates tokens and exposes the actor
// identity to the sync engine.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Claims represents the JWT claims structure issued by the identity service.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.).
// The subject is the user's UUID; email is the user's display identity.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}
