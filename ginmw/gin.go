// Package ginmw exposes the session resolver as Gin middleware, for
// services embedding the gateway's auth semantics behind a Gin router
// instead of the net/http pipeline.
package ginmw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	gateway "github.com/chimerakang/gateway-go"
	"github.com/chimerakang/gateway-go/session"
)

// Context keys for storing session data in gin.Context.
const (
	KeyUser        = "gateway_user"
	KeyAccessToken = "gateway_access_token"
)

// AuthOption configures SessionAuth behavior.
type AuthOption func(*authConfig)

type authConfig struct {
	requireSession bool
	loginPath      string
}

// WithRequiredSession aborts requests without a valid session instead of
// passing them through anonymously.
func WithRequiredSession() AuthOption {
	return func(cfg *authConfig) { cfg.requireSession = true }
}

// WithLoginPath sets the redirect target for rejected requests.
// Default: "/login".
func WithLoginPath(path string) AuthOption {
	return func(cfg *authConfig) { cfg.loginPath = path }
}

// SessionAuth returns Gin middleware that resolves the session cookie,
// rotating soon-to-expire tokens, and stores the result in the context.
func SessionAuth(resolver *session.Resolver, opts ...AuthOption) gin.HandlerFunc {
	cfg := &authConfig{loginPath: "/login"}
	for _, o := range opts {
		o(cfg)
	}

	return func(c *gin.Context) {
		result := resolver.Resolve(c.Request.Context(), session.RequestCookies(c.Request), session.ResponseCookies(c.Writer))

		if result.User == nil {
			if cfg.requireSession {
				c.Redirect(http.StatusSeeOther, cfg.loginPath)
				c.Abort()
				return
			}
			c.Next()
			return
		}

		c.Set(KeyUser, result.User)
		c.Set(KeyAccessToken, result.AccessToken)
		c.Request = c.Request.WithContext(gateway.WithUser(c.Request.Context(), result.User))

		c.Next()
	}
}

// GetUser returns the resolved session user, or nil.
func GetUser(c *gin.Context) *gateway.TokenPayload {
	v, ok := c.Get(KeyUser)
	if !ok {
		return nil
	}
	user, _ := v.(*gateway.TokenPayload)
	return user
}

// GetAccessToken returns the resolved access token, or "".
func GetAccessToken(c *gin.Context) string {
	v, ok := c.Get(KeyAccessToken)
	if !ok {
		return ""
	}
	token, _ := v.(string)
	return token
}
