// Package identity abstracts the external auth service: token verification,
// custom-claim storage and session revocation. Claim updates and document
// store writes in the same logical operation are not transactional.
package identity

import (
	"context"
	"errors"
)

// Verification errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
	ErrUserNotFound = errors.New("user not found")
)

// Identity is the result of a successful token verification
type Identity struct {
	UID    string
	Claims map[string]any
}

// Provider is the external identity service
type Provider interface {
	// VerifyToken validates a bearer token and returns the caller's identity
	VerifyToken(ctx context.Context, token string) (*Identity, error)
	// SetCustomClaims replaces the custom claims attached to future tokens
	SetCustomClaims(ctx context.Context, uid string, claims map[string]any) error
	// RevokeSessions invalidates every outstanding token for the user.
	// Revoking an already-revoked session is a no-op from the caller's
	// perspective.
	RevokeSessions(ctx context.Context, uid string) error
}
