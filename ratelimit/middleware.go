package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/chimerakang/gateway-go/chain"
	"github.com/chimerakang/gateway-go/metrics"
)

// Options configures one rate-limiting stage.
type Options struct {
	// Limiter decides admission. Required.
	Limiter Admitter

	// Match restricts the stage to matching requests; non-matching
	// requests pass through untouched. Default: match everything.
	Match func(*http.Request) bool

	// Blacklist is a static set of denied client IPs. Blacklisted
	// requests are rejected before the limiter is consulted.
	Blacklist []string

	// Purpose labels the stage in logs and metrics ("global",
	// "sensitive").
	Purpose string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// SensitiveMatch matches state-mutating requests, for the tighter
// sensitive-action cap.
func SensitiveMatch(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// Interceptor returns the rate-limiting pipeline stage. A denial is a
// terminal response; the gateway never retries it.
func Interceptor(opts Options) chain.Interceptor {
	if opts.Match == nil {
		opts.Match = func(*http.Request) bool { return true }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	denied := make(map[string]bool, len(opts.Blacklist))
	for _, ip := range opts.Blacklist {
		denied[ip] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !opts.Match(r) {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)

			// Blacklisted clients never touch the counter table.
			if denied[ip] {
				opts.Metrics.RecordBlacklist(opts.Purpose)
				writeJSON(w, http.StatusForbidden, "not allowed")
				return
			}

			dec, err := opts.Limiter.Admit(r.Context(), ip)
			if err != nil {
				// A broken counter store fails open.
				opts.Logger.Error("rate limiter store failed, admitting",
					"purpose", opts.Purpose, "ip", ip, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !dec.Allowed {
				opts.Metrics.RecordAdmission(opts.Purpose, false)
				opts.Logger.Warn("rate limit exceeded",
					"purpose", opts.Purpose, "ip", ip, "count", dec.Count)
				writeJSON(w, http.StatusTooManyRequests, "too many requests")
				return
			}

			opts.Metrics.RecordAdmission(opts.Purpose, true)
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
