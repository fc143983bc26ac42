package gateway

import "context"

type ctxKey string

const (
	ctxKeyUser      ctxKey = "gateway_user"
	ctxKeyRequestID ctxKey = "gateway_request_id"
)

// WithUser stores the resolved session user in the context.
func WithUser(ctx context.Context, user *TokenPayload) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// UserFromContext extracts the resolved session user, or nil.
func UserFromContext(ctx context.Context) *TokenPayload {
	v, _ := ctx.Value(ctxKeyUser).(*TokenPayload)
	return v
}

// WithRequestID stores the per-request correlation ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext extracts the per-request correlation ID.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}
