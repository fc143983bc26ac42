package session

import (
	"net/http"
	"time"

	gateway "github.com/chimerakang/gateway-go"
)

// Default cookie names. Overridable via resolver options.
const (
	DefaultSessionCookie = "session-token"
	DefaultRefreshCookie = "refresh-token"
)

type requestCookies struct {
	r *http.Request
}

// RequestCookies adapts an incoming request's cookie header to
// gateway.CookieReader.
func RequestCookies(r *http.Request) gateway.CookieReader {
	return requestCookies{r: r}
}

func (rc requestCookies) Get(name string) (string, bool) {
	c, err := rc.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

type responseCookies struct {
	w http.ResponseWriter
}

// ResponseCookies adapts a response writer to gateway.CookieWriter.
func ResponseCookies(w http.ResponseWriter) gateway.CookieWriter {
	return responseCookies{w: w}
}

func (rc responseCookies) Set(c *http.Cookie) {
	http.SetCookie(rc.w, c)
}

func (rc responseCookies) Delete(name string) {
	http.SetCookie(rc.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
}
