package audit

import (
	"net/http"

	gateway "github.com/chimerakang/gateway-go"
	"github.com/chimerakang/gateway-go/chain"
	"github.com/chimerakang/gateway-go/ratelimit"
)

// statusRecorder captures the response status written downstream.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

// Interceptor records gateway denials and redirects as audit events.
// It wraps the whole pipeline, so it sees the terminal status of every
// intercepted request.
func Interceptor(logger *Logger) chain.Interceptor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			action, result := classify(rec.status)
			if action == "" {
				return
			}
			logger.Log(Event{
				RequestID: gateway.RequestIDFromContext(r.Context()),
				ClientIP:  ratelimit.ClientIP(r),
				Method:    r.Method,
				Path:      r.URL.Path,
				Action:    action,
				Result:    result,
				Status:    rec.status,
			})
		})
	}
}

func classify(status int) (action, result string) {
	switch {
	case status == http.StatusForbidden:
		return "blacklist_denied", "denied"
	case status == http.StatusTooManyRequests:
		return "rate_limit_denied", "denied"
	case status >= 300 && status < 400:
		return "redirect", "success"
	default:
		return "", ""
	}
}
