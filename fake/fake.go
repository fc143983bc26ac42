// Package fake provides an in-memory identity service for testing.
//
// It implements gateway.IdentityService without network calls: access
// tokens are real HS256 JWTs carrying the gateway payload shape, refresh
// tokens are opaque and rotate on every use, and verification tokens are
// one-time.
package fake

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	gateway "github.com/chimerakang/gateway-go"
	"github.com/chimerakang/gateway-go/identity"
)

// Service is an in-memory identity backend.
type Service struct {
	mu           sync.Mutex
	users        map[string]*userRecord // email → user
	refreshIndex map[string]string      // refresh token → email
	verifyIndex  map[string]string      // verification token → email
	signingKey   []byte
	tokenTTL     time.Duration
	nextID       int

	now func() time.Time
}

type userRecord struct {
	id        string
	username  string
	email     string
	role      gateway.Role
	serverURL string
	password  string
	verified  bool
}

// compile-time check
var _ gateway.IdentityService = (*Service)(nil)

// Option configures the fake service.
type Option func(*Service)

// WithUser registers a user.
func WithUser(id, username, email, password string, role gateway.Role) Option {
	return func(s *Service) {
		s.users[email] = &userRecord{
			id:        id,
			username:  username,
			email:     email,
			role:      role,
			serverURL: "https://media.example.com",
			password:  password,
			verified:  true,
		}
	}
}

// WithVerificationToken registers a one-time verification token for an
// existing user.
func WithVerificationToken(token, email string) Option {
	return func(s *Service) { s.verifyIndex[token] = email }
}

// WithRefreshToken registers a refresh token for an existing user.
func WithRefreshToken(token, email string) Option {
	return func(s *Service) { s.refreshIndex[token] = email }
}

// WithTokenTTL sets the access token lifetime. Default: 1 hour.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) { s.tokenTTL = d }
}

// WithSigningKey sets the HS256 signing key.
func WithSigningKey(key []byte) Option {
	return func(s *Service) { s.signingKey = key }
}

// New creates an in-memory identity service.
func New(opts ...Option) *Service {
	s := &Service{
		users:        make(map[string]*userRecord),
		refreshIndex: make(map[string]string),
		verifyIndex:  make(map[string]string),
		signingKey:   []byte("fake-signing-key"),
		tokenTTL:     1 * time.Hour,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Refresh rotates an access token. The presented refresh token is
// consumed and replaced.
func (s *Service) Refresh(_ context.Context, refreshToken string) (*gateway.RefreshResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.refreshIndex[refreshToken]
	if !ok {
		return nil, &identity.APIError{Status: 401, Message: "invalid refresh token"}
	}
	u := s.users[email]

	delete(s.refreshIndex, refreshToken)
	s.refreshIndex[opaqueToken()] = email

	exp := s.now().Add(s.tokenTTL)
	access, err := s.issueAccessToken(u, exp)
	if err != nil {
		return nil, err
	}
	return &gateway.RefreshResult{AccessToken: access, ExpiresAt: exp}, nil
}

// VerifyEmail consumes a one-time verification token.
func (s *Service) VerifyEmail(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.verifyIndex[token]
	if !ok {
		return &identity.APIError{Status: 400, Message: "Invalid or expired verification token"}
	}
	delete(s.verifyIndex, token)
	s.users[email].verified = true
	return nil
}

// Login authenticates a registered user and issues a token pair.
func (s *Service) Login(_ context.Context, email, password string) (*gateway.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok || u.password != password {
		return nil, &identity.APIError{Status: 401, Message: "invalid credentials"}
	}
	return s.issueCredentials(u)
}

// Signup registers a new unverified user and issues a token pair.
func (s *Service) Signup(_ context.Context, username, email, password string) (*gateway.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[email]; exists {
		return nil, &identity.APIError{Status: 409, Message: "email already registered"}
	}

	s.nextID++
	u := &userRecord{
		id:        fmt.Sprintf("user-%d", s.nextID),
		username:  username,
		email:     email,
		role:      gateway.RoleUser,
		serverURL: "https://media.example.com",
		password:  password,
	}
	s.users[email] = u
	s.verifyIndex[opaqueToken()] = email
	return s.issueCredentials(u)
}

func (s *Service) issueCredentials(u *userRecord) (*gateway.Credentials, error) {
	exp := s.now().Add(s.tokenTTL)
	access, err := s.issueAccessToken(u, exp)
	if err != nil {
		return nil, err
	}

	refresh := opaqueToken()
	s.refreshIndex[refresh] = u.email
	return &gateway.Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) issueAccessToken(u *userRecord, exp time.Time) (string, error) {
	claims := jwt.MapClaims{
		"id":        u.id,
		"username":  u.username,
		"email":     u.email,
		"role":      string(u.role),
		"serverUrl": u.serverURL,
		"iat":       s.now().Unix(),
		"exp":       exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("fake: sign token: %w", err)
	}
	return signed, nil
}

func opaqueToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
