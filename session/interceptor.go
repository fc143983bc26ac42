package session

import (
	"net/http"
	"strings"

	gateway "github.com/chimerakang/gateway-go"
	"github.com/chimerakang/gateway-go/chain"
)

// InterceptorOptions configures the auth pipeline stage.
type InterceptorOptions struct {
	Resolver *Resolver

	// ProtectedPrefixes are path prefixes requiring a valid session;
	// unauthenticated access redirects to LoginPath.
	ProtectedPrefixes []string

	// Locales are the supported locale tags. A leading locale segment
	// is stripped before protected-prefix matching, so the canonical
	// /en/admin form is as protected as the bare /admin one.
	Locales []string

	// LoginPath is the redirect target for unauthenticated access to a
	// protected path. Default: "/login".
	LoginPath string
}

// Interceptor resolves the session for every request, stores the user in
// the request context, and redirects unauthenticated access to protected
// paths. Resolution runs with a cookie sink, so soon-to-expire tokens
// are rotated here.
func Interceptor(opts InterceptorOptions) chain.Interceptor {
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}

	locales := make(map[string]bool, len(opts.Locales))
	for _, l := range opts.Locales {
		locales[gateway.NormalizeLocale(l)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := opts.Resolver.Resolve(r.Context(), RequestCookies(r), ResponseCookies(w))

			if result.User == nil && isProtected(stripLocale(r.URL.Path, locales), opts.ProtectedPrefixes) {
				http.Redirect(w, r, opts.LoginPath, http.StatusSeeOther)
				return
			}

			if result.User != nil {
				r = r.WithContext(gateway.WithUser(r.Context(), result.User))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// stripLocale drops a leading supported-locale segment so prefix
// matching sees the same path with or without it.
func stripLocale(path string, locales map[string]bool) string {
	seg, rest, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/")
	if !locales[gateway.NormalizeLocale(seg)] {
		return path
	}
	if rest == "" {
		return "/"
	}
	return "/" + rest
}

func isProtected(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}
