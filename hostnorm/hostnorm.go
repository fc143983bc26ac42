// Package hostnorm redirects requests on legacy hostnames or plain HTTP
// to the canonical HTTPS host, preserving path and query (including any
// locale path segment). It never inspects authentication state.
package hostnorm

import (
	"net"
	"net/http"
	"strings"

	"github.com/chimerakang/gateway-go/chain"
)

// Options configures the host normalizer.
type Options struct {
	// CanonicalHost is the production hostname all traffic converges on.
	CanonicalHost string

	// LegacyHosts is the fixed allow-list of hostnames redirected to the
	// canonical host.
	LegacyHosts []string

	// DevHosts are hostnames exempt from the HTTPS upgrade (localhost
	// and friends).
	DevHosts []string
}

// Interceptor returns the host/protocol normalization stage.
func Interceptor(opts Options) chain.Interceptor {
	legacy := make(map[string]bool, len(opts.LegacyHosts))
	for _, h := range opts.LegacyHosts {
		legacy[strings.ToLower(h)] = true
	}
	dev := map[string]bool{"localhost": true, "127.0.0.1": true}
	for _, h := range opts.DevHosts {
		dev[strings.ToLower(h)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := hostname(r)

			if legacy[host] {
				redirectCanonical(w, r, opts.CanonicalHost)
				return
			}

			if host == strings.ToLower(opts.CanonicalHost) && !isHTTPS(r) && !dev[host] {
				redirectCanonical(w, r, opts.CanonicalHost)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func redirectCanonical(w http.ResponseWriter, r *http.Request, canonicalHost string) {
	target := "https://" + canonicalHost + r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	// 308 keeps the method for non-GET requests.
	http.Redirect(w, r, target, http.StatusPermanentRedirect)
}

// hostname strips any port from the request host.
func hostname(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

// isHTTPS checks the connection itself and the proxy protocol header.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
