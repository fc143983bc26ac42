// Package session resolves the caller's authenticated session from the
// request cookies, refreshing soon-to-expire access tokens through the
// identity service.
//
// The resolver's contract: only a hard-expired or malformed token is a
// terminal "no session". A token inside the soft-expiry threshold is
// still served while a refresh is attempted, and refresh failure
// degrades to the stale-but-valid token rather than failing the caller.
package session

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	gateway "github.com/chimerakang/gateway-go"
	"github.com/chimerakang/gateway-go/metrics"
)

// DefaultSoftExpiry is the lead time before expiry during which a
// proactive refresh is attempted.
const DefaultSoftExpiry = 5 * time.Minute

// Resolver decodes, validates and rotates session tokens.
type Resolver struct {
	identity      gateway.IdentityService
	logger        *slog.Logger
	metrics       *metrics.Metrics
	softExpiry    time.Duration
	sessionCookie string
	refreshCookie string
	secureCookies bool

	// sf deduplicates concurrent refreshes of the same refresh token:
	// while one network call is pending every concurrent caller awaits
	// its outcome, and the slot is cleared before any of them resume.
	sf singleflight.Group

	now func() time.Time
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger sets a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithSoftExpiry sets the proactive-refresh lead time.
func WithSoftExpiry(d time.Duration) Option {
	return func(r *Resolver) { r.softExpiry = d }
}

// WithCookieNames overrides the session and refresh cookie names.
func WithCookieNames(session, refresh string) Option {
	return func(r *Resolver) {
		r.sessionCookie = session
		r.refreshCookie = refresh
	}
}

// WithSecureCookies marks rotated cookies Secure. Enable everywhere
// except local development.
func WithSecureCookies(secure bool) Option {
	return func(r *Resolver) { r.secureCookies = secure }
}

// NewResolver creates a session resolver backed by the given identity
// service.
func NewResolver(identity gateway.IdentityService, opts ...Option) *Resolver {
	r := &Resolver{
		identity:      identity,
		logger:        slog.Default(),
		softExpiry:    DefaultSoftExpiry,
		sessionCookie: DefaultSessionCookie,
		refreshCookie: DefaultRefreshCookie,
		secureCookies: true,
		now:           time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve determines the caller's session. A nil sink marks a read-only
// context: soft-expiring tokens are served as-is and refresh is deferred
// to a context that can write cookies.
func (r *Resolver) Resolve(ctx context.Context, cookies gateway.CookieReader, sink gateway.CookieWriter) gateway.SessionResult {
	raw, ok := cookies.Get(r.sessionCookie)
	if !ok {
		r.metrics.RecordResolution("none")
		return gateway.SessionResult{}
	}

	payload, err := DecodePayload(raw)
	if err != nil {
		// A malformed token cannot become valid by refreshing.
		r.logger.Warn("discarding malformed session token", "error", err)
		r.metrics.RecordResolution("malformed")
		return gateway.SessionResult{}
	}

	if missing := payload.MissingFields(); len(missing) > 0 {
		r.logger.Warn("session token missing required fields", "fields", missing)
		r.metrics.RecordResolution("malformed")
		return gateway.SessionResult{}
	}

	now := r.now()

	// An expired token is never silently accepted.
	if payload.ExpiresWithin(0, now) {
		r.metrics.RecordResolution("expired")
		return gateway.SessionResult{}
	}

	if !payload.ExpiresWithin(r.softExpiry, now) {
		r.metrics.RecordResolution("valid")
		return gateway.SessionResult{User: payload, AccessToken: raw}
	}

	// Soft-expiring. Without a cookie sink there is nowhere to store a
	// rotated token, so serve the still-valid one.
	if sink == nil {
		r.metrics.RecordResolution("stale")
		return gateway.SessionResult{User: payload, AccessToken: raw}
	}

	refreshToken, ok := cookies.Get(r.refreshCookie)
	if !ok {
		r.logger.Warn("session token expiring soon but no refresh token present",
			"user", payload.ID)
		r.metrics.RecordResolution("stale")
		return gateway.SessionResult{User: payload, AccessToken: raw}
	}

	result, err := r.refresh(ctx, refreshToken)
	if err != nil {
		r.logger.Error("token refresh failed, serving stale token",
			"user", payload.ID, "error", err)
		r.metrics.RecordResolution("stale")
		return gateway.SessionResult{User: payload, AccessToken: raw}
	}

	newPayload, err := DecodePayload(result.AccessToken)
	if err != nil || !newPayload.Complete() {
		r.logger.Error("refresh returned an undecodable token, serving stale token",
			"user", payload.ID, "error", err)
		r.metrics.RecordResolution("stale")
		return gateway.SessionResult{User: payload, AccessToken: raw}
	}

	if newPayload.ExpiresWithin(r.softExpiry, r.now()) {
		// Refreshing again would loop; keep the old payload.
		r.logger.Error("refresh returned a token already inside the expiry threshold",
			"user", payload.ID, "exp", newPayload.ExpiresAt)
		r.metrics.RecordResolution("stale")
		return gateway.SessionResult{User: payload, AccessToken: raw}
	}

	sink.Set(&http.Cookie{
		Name:     r.sessionCookie,
		Value:    result.AccessToken,
		Path:     "/",
		Expires:  newPayload.Expiry(),
		HttpOnly: true,
		Secure:   r.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	r.metrics.RecordResolution("refreshed")
	return gateway.SessionResult{User: newPayload, AccessToken: result.AccessToken}
}

// refresh performs the single-flight token rotation. Concurrent callers
// holding the same refresh token share one network call; the in-flight
// slot is cleared on success and failure alike.
func (r *Resolver) refresh(ctx context.Context, refreshToken string) (*gateway.RefreshResult, error) {
	start := r.now()
	v, err, _ := r.sf.Do(refreshToken, func() (interface{}, error) {
		return r.identity.Refresh(ctx, refreshToken)
	})
	if err != nil {
		r.metrics.RecordRefresh("failure", r.now().Sub(start).Seconds())
		return nil, err
	}
	r.metrics.RecordRefresh("success", r.now().Sub(start).Seconds())
	return v.(*gateway.RefreshResult), nil
}
