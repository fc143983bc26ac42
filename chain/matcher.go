package chain

import (
	"net/http"
	"path"
	"strings"
)

// MatcherOption configures the global request matcher.
type MatcherOption func(*matcherConfig)

type matcherConfig struct {
	skipPrefixes []string
	skipExact    map[string]bool
}

// WithSkipPrefixes adds path prefixes that bypass the whole pipeline.
func WithSkipPrefixes(prefixes ...string) MatcherOption {
	return func(cfg *matcherConfig) {
		cfg.skipPrefixes = append(cfg.skipPrefixes, prefixes...)
	}
}

// WithSkipPaths adds exact paths that bypass the whole pipeline.
func WithSkipPaths(paths ...string) MatcherOption {
	return func(cfg *matcherConfig) {
		for _, p := range paths {
			cfg.skipExact[p] = true
		}
	}
}

// staticExtensions are asset suffixes the pipeline never intercepts.
var staticExtensions = map[string]bool{
	".css": true, ".js": true, ".map": true, ".ico": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".svg": true, ".webp": true, ".avif": true,
	".woff": true, ".woff2": true, ".ttf": true,
	".txt": true, ".xml": true, ".webmanifest": true,
}

// Matcher returns the global exclusion predicate: static assets, API
// routes, build assets and well-known metadata skip the pipeline.
func Matcher(opts ...MatcherOption) func(*http.Request) bool {
	cfg := &matcherConfig{
		skipPrefixes: []string{"/api/", "/assets/", "/static/", "/.well-known/"},
		skipExact:    map[string]bool{"/favicon.ico": true, "/robots.txt": true, "/sitemap.xml": true},
	}
	for _, o := range opts {
		o(cfg)
	}

	return func(r *http.Request) bool {
		p := r.URL.Path
		if cfg.skipExact[p] {
			return true
		}
		for _, prefix := range cfg.skipPrefixes {
			if strings.HasPrefix(p, prefix) {
				return true
			}
		}
		return staticExtensions[strings.ToLower(path.Ext(p))]
	}
}
