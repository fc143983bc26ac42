// Package identity provides the HTTP client for the identity service.
//
// The gateway consumes the identity service, it never implements it:
// refresh and verification tokens are forwarded opaquely and the service
// is the source of truth for their validity.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gateway "github.com/chimerakang/gateway-go"
)

// APIError is a non-2xx response from the identity service carrying a
// server-provided message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity: status %d: %s", e.Status, e.Message)
}

// Client implements gateway.IdentityService over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// compile-time check
var _ gateway.IdentityService = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// New creates an identity service client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"` // epoch milliseconds
}

type credentialsResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*gateway.RefreshResult, error) {
	var resp refreshResponse
	if err := c.post(ctx, "/refresh", map[string]string{"token": refreshToken}, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("identity: empty accessToken in refresh response")
	}
	return &gateway.RefreshResult{
		AccessToken: resp.AccessToken,
		ExpiresAt:   time.UnixMilli(resp.ExpiresAt),
	}, nil
}

// VerifyEmail consumes a one-time email verification token.
func (c *Client) VerifyEmail(ctx context.Context, token string) error {
	return c.post(ctx, "/verify-email", map[string]string{"token": token}, nil)
}

// Login authenticates a user and returns a fresh token pair.
func (c *Client) Login(ctx context.Context, email, password string) (*gateway.Credentials, error) {
	var resp credentialsResponse
	if err := c.post(ctx, "/login", map[string]string{"email": email, "password": password}, &resp); err != nil {
		return nil, err
	}
	return &gateway.Credentials{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// Signup registers a new user and returns a fresh token pair.
func (c *Client) Signup(ctx context.Context, username, email, password string) (*gateway.Credentials, error) {
	var resp credentialsResponse
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := c.post(ctx, "/users", body, &resp); err != nil {
		return nil, err
	}
	return &gateway.Credentials{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("identity: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("identity: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity: request %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("identity: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Message: serverMessage(body)}
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("identity: decode %s response: %w", path, err)
		}
	}
	return nil
}

// serverMessage pulls the human-readable message out of an error body,
// falling back to the raw body.
func serverMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return strings.TrimSpace(string(body))
}
