package gateway

import (
	"strings"
	"time"
)

// Role is the coarse authorization level carried inside an access token.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the values the identity
// service issues.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// TokenPayload is the decoded claims section of an access token.
//
// A payload missing any of the required identity fields is discarded as a
// whole; the gateway never acts on a partially populated payload.
type TokenPayload struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	ServerURL string `json:"serverUrl"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// MissingFields returns the names of required fields that are empty.
func (p *TokenPayload) MissingFields() []string {
	var missing []string
	if p.ID == "" {
		missing = append(missing, "id")
	}
	if p.Username == "" {
		missing = append(missing, "username")
	}
	if p.Email == "" {
		missing = append(missing, "email")
	}
	if p.Role == "" {
		missing = append(missing, "role")
	}
	if p.ServerURL == "" {
		missing = append(missing, "serverUrl")
	}
	return missing
}

// Complete reports whether all required identity fields are present.
func (p *TokenPayload) Complete() bool {
	return len(p.MissingFields()) == 0
}

// Expiry returns the exp claim as a time.Time.
func (p *TokenPayload) Expiry() time.Time {
	return time.Unix(p.ExpiresAt, 0)
}

// ExpiresWithin reports whether the token expires within d of now.
// With d = 0 this is the hard-expiry check.
func (p *TokenPayload) ExpiresWithin(d time.Duration, now time.Time) bool {
	return !p.Expiry().After(now.Add(d))
}

// SessionResult is the outcome of resolving a session cookie.
// A nil User means no usable session.
type SessionResult struct {
	User        *TokenPayload
	AccessToken string
}

// RefreshResult is a successful token rotation from the identity service.
type RefreshResult struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Credentials is the token pair returned by login and sign-up.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// NormalizeLocale lowercases and strips any region subtag from a locale
// tag ("de-AT" → "de").
func NormalizeLocale(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return tag
}
