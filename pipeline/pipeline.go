// Package pipeline assembles the gateway's interceptor chain in its
// fixed execution order: global rate limiter, sensitive-action rate
// limiter, host normalizer, email verification, session resolution,
// locale negotiation. The order is declared here once; individual stages
// decide per request whether they apply.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	gateway "github.com/chimerakang/gateway-go"
	"github.com/chimerakang/gateway-go/audit"
	"github.com/chimerakang/gateway-go/chain"
	"github.com/chimerakang/gateway-go/hostnorm"
	"github.com/chimerakang/gateway-go/locale"
	"github.com/chimerakang/gateway-go/metrics"
	"github.com/chimerakang/gateway-go/ratelimit"
	"github.com/chimerakang/gateway-go/session"
	"github.com/chimerakang/gateway-go/verifyemail"
)

// Config holds the pipeline configuration.
type Config struct {
	// CanonicalHost is the production hostname all traffic converges on.
	CanonicalHost string

	// LegacyHosts are hostnames redirected to the canonical host.
	LegacyHosts []string

	// DevHosts are hostnames exempt from the HTTPS upgrade.
	DevHosts []string

	// ProtectedPrefixes are path prefixes requiring a valid session.
	// Default: /admin, /account.
	ProtectedPrefixes []string

	// VerifyPath is the email verification callback path.
	// Default: /verify-email.
	VerifyPath string

	// SupportedLocales is the fixed locale set. Default: en, de, fr, es.
	SupportedLocales []string

	// DefaultLocale is used when negotiation finds nothing.
	DefaultLocale string

	// GlobalMaxRequests caps requests per client per GlobalWindow.
	// Default: 100 per minute.
	GlobalMaxRequests int
	GlobalWindow      time.Duration

	// SensitiveMaxRequests caps state-mutating requests per client per
	// SensitiveWindow. Default: 10 per minute.
	SensitiveMaxRequests int
	SensitiveWindow      time.Duration

	// Blacklist is the static set of denied client IPs.
	Blacklist []string

	// SoftExpiry is the proactive-refresh lead time. Default: 5 minutes.
	SoftExpiry time.Duration

	// SecureCookies marks rotated cookies Secure. Disable only for
	// local development.
	SecureCookies bool
}

// Gateway is the assembled edge pipeline.
type Gateway struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditLog *audit.Logger
	identity gateway.IdentityService
	store    ratelimit.CounterStore
	upstream http.Handler
	matcher  func(*http.Request) bool
}

// Option configures the Gateway.
type Option func(*Gateway)

// WithLogger sets a structured logger for all stages.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

// WithAudit sets the audit event logger.
func WithAudit(l *audit.Logger) Option {
	return func(g *Gateway) { g.auditLog = l }
}

// WithIdentity sets the identity service implementation. Required.
func WithIdentity(svc gateway.IdentityService) Option {
	return func(g *Gateway) { g.identity = svc }
}

// WithCounterStore overrides the rate limiter's counter store
// (e.g. ratelimit.NewRedisStore for multi-process deployments).
func WithCounterStore(s ratelimit.CounterStore) Option {
	return func(g *Gateway) { g.store = s }
}

// WithUpstream mounts the handler that serves requests the pipeline
// does not terminate. Default: chain.Terminal.
func WithUpstream(h http.Handler) Option {
	return func(g *Gateway) { g.upstream = h }
}

// WithMatcher overrides the global exclusion predicate.
func WithMatcher(skip func(*http.Request) bool) Option {
	return func(g *Gateway) { g.matcher = skip }
}

// New assembles a gateway from the configuration.
func New(cfg Config, opts ...Option) (*Gateway, error) {
	if cfg.GlobalMaxRequests == 0 {
		cfg.GlobalMaxRequests = 100
	}
	if cfg.GlobalWindow == 0 {
		cfg.GlobalWindow = time.Minute
	}
	if cfg.SensitiveMaxRequests == 0 {
		cfg.SensitiveMaxRequests = 10
	}
	if cfg.SensitiveWindow == 0 {
		cfg.SensitiveWindow = time.Minute
	}
	if len(cfg.ProtectedPrefixes) == 0 {
		cfg.ProtectedPrefixes = []string{"/admin", "/account"}
	}
	if cfg.SoftExpiry == 0 {
		cfg.SoftExpiry = session.DefaultSoftExpiry
	}
	if len(cfg.SupportedLocales) == 0 {
		cfg.SupportedLocales = []string{"en", "de", "fr", "es"}
	}

	g := &Gateway{
		cfg:      cfg,
		logger:   slog.Default(),
		upstream: chain.Terminal,
		matcher:  chain.Matcher(),
	}
	for _, o := range opts {
		o(g)
	}

	if g.identity == nil {
		return nil, errMissingIdentity
	}
	if g.store == nil {
		g.store = ratelimit.NewMemoryStore()
	}

	return g, nil
}

// Handler builds the composed entry point. Requests matched by the
// global exclusion predicate flow straight to the upstream.
func (g *Gateway) Handler() http.Handler {
	resolver := session.NewResolver(g.identity,
		session.WithLogger(g.logger),
		session.WithMetrics(g.metrics),
		session.WithSoftExpiry(g.cfg.SoftExpiry),
		session.WithSecureCookies(g.cfg.SecureCookies),
	)

	stages := []chain.Interceptor{
		chain.RequestID(),
		ratelimit.Interceptor(ratelimit.Options{
			Limiter: &ratelimit.WindowLimiter{
				Store:  g.store,
				Max:    g.cfg.GlobalMaxRequests,
				Window: g.cfg.GlobalWindow,
			},
			Blacklist: g.cfg.Blacklist,
			Purpose:   "global",
			Logger:    g.logger,
			Metrics:   g.metrics,
		}),
		ratelimit.Interceptor(ratelimit.Options{
			Limiter: &ratelimit.WindowLimiter{
				Store:  prefixedStore{store: g.store, prefix: "sensitive:"},
				Max:    g.cfg.SensitiveMaxRequests,
				Window: g.cfg.SensitiveWindow,
			},
			Match:     ratelimit.SensitiveMatch,
			Blacklist: g.cfg.Blacklist,
			Purpose:   "sensitive",
			Logger:    g.logger,
			Metrics:   g.metrics,
		}),
		hostnorm.Interceptor(hostnorm.Options{
			CanonicalHost: g.cfg.CanonicalHost,
			LegacyHosts:   g.cfg.LegacyHosts,
			DevHosts:      g.cfg.DevHosts,
		}),
		verifyemail.Interceptor(verifyemail.Options{
			Path:     g.cfg.VerifyPath,
			Identity: g.identity,
			Logger:   g.logger,
			Metrics:  g.metrics,
		}),
		session.Interceptor(session.InterceptorOptions{
			Resolver:          resolver,
			ProtectedPrefixes: g.cfg.ProtectedPrefixes,
			Locales:           g.cfg.SupportedLocales,
		}),
		locale.Interceptor(locale.Options{
			Supported:        g.cfg.SupportedLocales,
			Default:          g.cfg.DefaultLocale,
			ExcludedPrefixes: []string{"/error/", "/verify-email"},
		}),
	}

	if g.auditLog != nil {
		// After RequestID so audit events carry the correlation ID.
		stages = append([]chain.Interceptor{stages[0], audit.Interceptor(g.auditLog)}, stages[1:]...)
	}

	h := chain.Chain(stages...)(g.upstream)
	return chain.Bypass(g.matcher, h, g.upstream)
}

var errMissingIdentity = errors.New("gateway/pipeline: identity service is required")

// prefixedStore namespaces the sensitive-action counters so they never
// collide with the global ones in a shared store.
type prefixedStore struct {
	store  ratelimit.CounterStore
	prefix string
}

func (p prefixedStore) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	return p.store.Hit(ctx, p.prefix+key, window)
}
