// Package ratelimit provides the gateway's per-client request caps.
//
// Admission is keyed by client IP. The default limiter is a fixed-window
// counter whose window restarts at the first request after it elapses; a
// burst straddling a window boundary can therefore admit up to twice the
// cap within one window length. That is the accepted cost of O(1) state
// per key.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed bool
	// Count is the post-increment request count within the current
	// window, when the limiter tracks one.
	Count int
}

// Admitter decides whether a keyed request is admitted now.
// Implementations: WindowLimiter (fixed-window counter), BucketLimiter
// (token bucket).
type Admitter interface {
	Admit(ctx context.Context, key string) (Decision, error)
}

// CounterStore holds one window counter per key.
type CounterStore interface {
	// Hit records a request for key and returns the post-increment
	// count. The counter resets to 1 when the window has elapsed since
	// its start.
	Hit(ctx context.Context, key string, window time.Duration) (int, error)
}

// WindowLimiter admits at most Max requests per key per Window.
type WindowLimiter struct {
	Store  CounterStore
	Max    int
	Window time.Duration
}

// Admit implements Admitter.
func (l *WindowLimiter) Admit(ctx context.Context, key string) (Decision, error) {
	n, err := l.Store.Hit(ctx, key, l.Window)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: n <= l.Max, Count: n}, nil
}
