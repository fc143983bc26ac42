package gateway

import (
	"context"
	"net/http"
)

// IdentityService is the network contract with the identity backend.
// Implementations: identity/ (HTTP), fake/ (testing).
type IdentityService interface {
	// Refresh exchanges an opaque refresh token for a new access token.
	// The refresh token is forwarded as-is, never parsed locally.
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)

	// VerifyEmail consumes a one-time email verification token.
	// The identity service is the source of truth for whether a token
	// has already been used.
	VerifyEmail(ctx context.Context, token string) error

	// Login authenticates a user and returns a fresh token pair.
	Login(ctx context.Context, email, password string) (*Credentials, error)

	// Signup registers a new user and returns a fresh token pair.
	Signup(ctx context.Context, username, email, password string) (*Credentials, error)
}

// CookieReader reads request cookies by name.
type CookieReader interface {
	// Get returns the named cookie's value and whether it was present.
	Get(name string) (string, bool)
}

// CookieWriter writes response cookies. A nil CookieWriter marks a
// read-only context where the session resolver must not rotate cookies.
type CookieWriter interface {
	// Set adds or replaces a response cookie.
	Set(c *http.Cookie)

	// Delete expires the named cookie immediately.
	Delete(name string)
}
