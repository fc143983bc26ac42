// Package locale owns the terminal locale negotiation for page paths:
// a supported locale prefix is served as-is, anything else redirects to
// the negotiated locale-prefixed path. Excluded prefixes bypass locale
// handling entirely.
package locale

import (
	"net/http"
	"strings"

	gateway "github.com/chimerakang/gateway-go"
	"github.com/chimerakang/gateway-go/chain"
)

// Options configures locale negotiation.
type Options struct {
	// Supported is the fixed set of locale tags, first acts as a
	// fallback order hint. Default: en, de, fr, es.
	Supported []string

	// Default is the locale used when negotiation finds nothing.
	// Default: first supported locale.
	Default string

	// ExcludedPrefixes bypass locale handling and go straight to the
	// next handler.
	ExcludedPrefixes []string

	// CookieName is the locale preference cookie. Default: "locale".
	CookieName string
}

// Interceptor returns the locale stage. It is last in the chain: for
// non-excluded paths it terminates the request itself, either by
// redirecting or by serving through the upstream it wraps.
func Interceptor(opts Options) chain.Interceptor {
	if len(opts.Supported) == 0 {
		opts.Supported = []string{"en", "de", "fr", "es"}
	}
	if opts.Default == "" {
		opts.Default = opts.Supported[0]
	}
	if opts.CookieName == "" {
		opts.CookieName = "locale"
	}

	supported := make(map[string]bool, len(opts.Supported))
	for _, l := range opts.Supported {
		supported[gateway.NormalizeLocale(l)] = true
	}

	return func(upstream http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range opts.ExcludedPrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					upstream.ServeHTTP(w, r)
					return
				}
			}

			if seg := firstSegment(r.URL.Path); supported[seg] {
				upstream.ServeHTTP(w, r)
				return
			}

			loc := negotiate(r, opts.CookieName, supported, opts.Default)
			target := "/" + loc + r.URL.Path
			if r.URL.RawQuery != "" {
				target += "?" + r.URL.RawQuery
			}
			// 307 keeps the method; the path gains only a locale prefix.
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
		})
	}
}

// negotiate picks a locale: cookie, then Accept-Language, then default.
func negotiate(r *http.Request, cookieName string, supported map[string]bool, def string) string {
	if c, err := r.Cookie(cookieName); err == nil {
		if loc := gateway.NormalizeLocale(c.Value); supported[loc] {
			return loc
		}
	}

	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		tag, _, _ := strings.Cut(part, ";")
		if loc := gateway.NormalizeLocale(tag); supported[loc] {
			return loc
		}
	}

	return def
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	seg, _, _ := strings.Cut(path, "/")
	return gateway.NormalizeLocale(seg)
}
