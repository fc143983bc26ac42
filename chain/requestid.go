package chain

import (
	"net/http"

	"github.com/google/uuid"

	gateway "github.com/chimerakang/gateway-go"
)

// HeaderRequestID carries the per-request correlation ID.
const HeaderRequestID = "X-Request-Id"

// RequestID assigns a correlation ID to every request that does not
// already carry one, and echoes it on the response.
func RequestID() Interceptor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(HeaderRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, id)
			r = r.WithContext(gateway.WithRequestID(r.Context(), id))
			next.ServeHTTP(w, r)
		})
	}
}
