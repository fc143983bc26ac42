// Package chain composes the gateway's request interceptors.
//
// An Interceptor wraps the rest of the pipeline: it may short-circuit by
// writing a response without calling next, or call next and post-process.
// The pipeline is declared once at startup as an ordered slice and folded
// right-to-left, so the first interceptor in the slice observes the
// request first and wraps the response last.
package chain

import (
	"net/http"
)

// Interceptor is one stage of the request pipeline.
type Interceptor func(next http.Handler) http.Handler

// Terminal is the default pass-through handler mounted when no upstream
// is configured. It intercepts nothing.
var Terminal http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

// Chain folds the given stages into a single interceptor.
// Chain(f1, f2, f3)(h) == f1(f2(f3(h))).
func Chain(stages ...Interceptor) Interceptor {
	return func(next http.Handler) http.Handler {
		h := next
		for i := len(stages) - 1; i >= 0; i-- {
			h = stages[i](h)
		}
		return h
	}
}

// Bypass routes requests matched by skip directly to upstream, and
// everything else through the full pipeline.
func Bypass(skip func(*http.Request) bool, pipeline, upstream http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skip(r) {
			upstream.ServeHTTP(w, r)
			return
		}
		pipeline.ServeHTTP(w, r)
	})
}
