package ginmw

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chimerakang/gateway-go/fake"
	"github.com/chimerakang/gateway-go/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(resolver *session.Resolver, opts ...AuthOption) (*gin.Engine, *[]string) {
	r := gin.New()
	var seenUsers []string
	r.Use(SessionAuth(resolver, opts...))
	r.GET("/page", func(c *gin.Context) {
		if u := GetUser(c); u != nil {
			seenUsers = append(seenUsers, u.ID)
		}
		c.Status(http.StatusOK)
	})
	return r, &seenUsers
}

func validToken(t *testing.T) string {
	t.Helper()
	claims := map[string]any{
		"id": "u1", "username": "alice", "email": "a@example.com",
		"role": "user", "serverUrl": "https://media.example.com",
		"iat": time.Now().Unix(), "exp": time.Now().Add(time.Hour).Unix(),
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	head := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`))
	return head + "." + base64.RawURLEncoding.EncodeToString(raw) + ".sig"
}

func TestSessionAuth_AnonymousPassesThrough(t *testing.T) {
	resolver := session.NewResolver(fake.New())
	r, seen := newRouter(resolver)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(*seen) != 0 {
		t.Errorf("users seen = %v, want none", *seen)
	}
}

func TestSessionAuth_RequiredSessionRedirects(t *testing.T) {
	resolver := session.NewResolver(fake.New())
	r, _ := newRouter(resolver, WithRequiredSession())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/page", nil))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/login" {
		t.Errorf("Location = %q", got)
	}
}

func TestSessionAuth_ValidSessionInContext(t *testing.T) {
	resolver := session.NewResolver(fake.New())
	r, seen := newRouter(resolver, WithRequiredSession())

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultSessionCookie, Value: validToken(t)})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(*seen) != 1 || (*seen)[0] != "u1" {
		t.Errorf("users seen = %v, want [u1]", *seen)
	}
}

func TestGetUser_AbsentReturnsNil(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if GetUser(c) != nil {
		t.Error("GetUser() on empty context != nil")
	}
	if GetAccessToken(c) != "" {
		t.Error("GetAccessToken() on empty context != \"\"")
	}
}
