// Package verifyemail intercepts the email verification callback path,
// exchanges the one-time token with the identity service and clears the
// pending-verification cookie set at sign-up.
//
// The identity service decides whether a token has already been used;
// the gateway keeps no local idempotence state.
package verifyemail

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gateway "github.com/chimerakang/gateway-go"
	"github.com/chimerakang/gateway-go/chain"
	"github.com/chimerakang/gateway-go/identity"
	"github.com/chimerakang/gateway-go/metrics"
	"github.com/chimerakang/gateway-go/session"
)

// DefaultPendingCookie is the cookie set at sign-up and cleared on
// successful verification.
const DefaultPendingCookie = "pending-verification-email"

// Options configures the verification interceptor.
type Options struct {
	// Path is the single path this stage intercepts.
	// Default: "/verify-email".
	Path string

	// Identity performs the token exchange. Required.
	Identity gateway.IdentityService

	// PendingCookie is deleted on successful verification.
	PendingCookie string

	// ErrorPath is the bad-request error page. Default: "/error/400".
	ErrorPath string

	// LoginPath is the success redirect target. Default: "/login".
	LoginPath string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Interceptor returns the email-verification stage. Requests on any
// other path pass through unconditionally.
func Interceptor(opts Options) chain.Interceptor {
	if opts.Path == "" {
		opts.Path = "/verify-email"
	}
	if opts.PendingCookie == "" {
		opts.PendingCookie = DefaultPendingCookie
	}
	if opts.ErrorPath == "" {
		opts.ErrorPath = "/error/400"
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != opts.Path {
				next.ServeHTTP(w, r)
				return
			}

			token := r.URL.Query().Get("token")
			if token == "" {
				opts.Metrics.RecordVerification("missing_token")
				redirectError(w, r, opts.ErrorPath, "Missing token")
				return
			}

			err := opts.Identity.VerifyEmail(r.Context(), token)
			if err == nil {
				session.ResponseCookies(w).Delete(opts.PendingCookie)
				opts.Metrics.RecordVerification("success")
				http.Redirect(w, r, opts.LoginPath+"?from=verify-email", http.StatusSeeOther)
				return
			}

			var apiErr *identity.APIError
			if errors.As(err, &apiErr) {
				// The service named the failure; show its message.
				opts.Metrics.RecordVerification("rejected")
				redirectError(w, r, opts.ErrorPath, apiErr.Message)
				return
			}

			opts.Logger.Error("email verification failed unexpectedly", "error", err)
			opts.Metrics.RecordVerification("error")
			redirectError(w, r, opts.ErrorPath, "Something went wrong")
		})
	}
}

func redirectError(w http.ResponseWriter, r *http.Request, errorPath, message string) {
	// %20 for spaces, not +, so the raw Location header reads the same
	// as the page layer's own error links.
	escaped := strings.ReplaceAll(url.QueryEscape(message), "+", "%20")
	http.Redirect(w, r, errorPath+"?message="+escaped, http.StatusSeeOther)
}
