package session

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gateway "github.com/chimerakang/gateway-go"
)

// mockIdentity implements gateway.IdentityService for resolver tests.
type mockIdentity struct {
	refreshCalls atomic.Int32
	refreshDelay time.Duration
	refreshErr   error
	newToken     string
	newExpiry    time.Time
}

func (m *mockIdentity) Refresh(ctx context.Context, refreshToken string) (*gateway.RefreshResult, error) {
	m.refreshCalls.Add(1)
	if m.refreshDelay > 0 {
		time.Sleep(m.refreshDelay)
	}
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	return &gateway.RefreshResult{AccessToken: m.newToken, ExpiresAt: m.newExpiry}, nil
}

func (m *mockIdentity) VerifyEmail(ctx context.Context, token string) error { return nil }

func (m *mockIdentity) Login(ctx context.Context, email, password string) (*gateway.Credentials, error) {
	return nil, nil
}

func (m *mockIdentity) Signup(ctx context.Context, username, email, password string) (*gateway.Credentials, error) {
	return nil, nil
}

// mapCookies implements gateway.CookieReader over a plain map.
type mapCookies map[string]string

func (m mapCookies) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok && v != ""
}

// recordSink implements gateway.CookieWriter and records writes.
type recordSink struct {
	mu      sync.Mutex
	set     []*http.Cookie
	deleted []string
}

func (s *recordSink) Set(c *http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set = append(s.set, c)
}

func (s *recordSink) Delete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, name)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestResolver(identity gateway.IdentityService) *Resolver {
	return NewResolver(identity, WithLogger(quietLogger()))
}

func TestResolve_NoCookie(t *testing.T) {
	ident := &mockIdentity{}
	r := newTestResolver(ident)

	result := r.Resolve(context.Background(), mapCookies{}, nil)

	if result.User != nil || result.AccessToken != "" {
		t.Errorf("Resolve() = %+v, want empty result", result)
	}
	if n := ident.refreshCalls.Load(); n != 0 {
		t.Errorf("refresh calls = %d, want 0", n)
	}
}

func TestResolve_EmptyCookie(t *testing.T) {
	r := newTestResolver(&mockIdentity{})

	result := r.Resolve(context.Background(), mapCookies{DefaultSessionCookie: ""}, nil)

	if result.User != nil {
		t.Errorf("User = %+v, want nil", result.User)
	}
}

func TestResolve_MalformedToken_NoNetworkCall(t *testing.T) {
	ident := &mockIdentity{}
	r := newTestResolver(ident)

	result := r.Resolve(context.Background(),
		mapCookies{DefaultSessionCookie: "not-a-jwt"}, &recordSink{})

	if result.User != nil || result.AccessToken != "" {
		t.Errorf("Resolve() = %+v, want empty result", result)
	}
	if n := ident.refreshCalls.Load(); n != 0 {
		t.Errorf("refresh calls = %d, want 0", n)
	}
}

func TestResolve_MalformedToken_Logged(t *testing.T) {
	var buf bytes.Buffer
	r := NewResolver(&mockIdentity{},
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))

	r.Resolve(context.Background(), mapCookies{DefaultSessionCookie: "not-a-jwt"}, nil)

	if !strings.Contains(buf.String(), "malformed") {
		t.Errorf("log output = %q, want a malformed-token warning", buf.String())
	}
}

func TestResolve_MissingFields(t *testing.T) {
	claims := fullClaims(time.Now().Add(time.Hour))
	delete(claims, "role")
	token := buildToken(t, claims)
	r := newTestResolver(&mockIdentity{})

	result := r.Resolve(context.Background(), mapCookies{DefaultSessionCookie: token}, nil)

	if result.User != nil {
		t.Errorf("User = %+v, want nil", result.User)
	}
}

func TestResolve_ExpiredToken(t *testing.T) {
	token := buildToken(t, fullClaims(time.Now().Add(-1*time.Minute)))
	ident := &mockIdentity{}
	r := newTestResolver(ident)

	// With and without a sink: expiry is always terminal.
	for _, sink := range []gateway.CookieWriter{nil, &recordSink{}} {
		result := r.Resolve(context.Background(),
			mapCookies{DefaultSessionCookie: token, DefaultRefreshCookie: "rt"}, sink)
		if result.User != nil || result.AccessToken != "" {
			t.Errorf("Resolve() = %+v, want empty result", result)
		}
	}
	if n := ident.refreshCalls.Load(); n != 0 {
		t.Errorf("refresh calls = %d, want 0", n)
	}
}

func TestResolve_HealthyToken(t *testing.T) {
	token := buildToken(t, fullClaims(time.Now().Add(1*time.Hour)))
	ident := &mockIdentity{}
	r := newTestResolver(ident)

	result := r.Resolve(context.Background(), mapCookies{DefaultSessionCookie: token}, nil)

	if result.User == nil {
		t.Fatal("User = nil, want payload")
	}
	if result.AccessToken != token {
		t.Error("AccessToken rotated for a healthy token")
	}
	if n := ident.refreshCalls.Load(); n != 0 {
		t.Errorf("refresh calls = %d, want 0", n)
	}
}

func TestResolve_SoftExpiring_RefreshSuccess(t *testing.T) {
	oldToken := buildToken(t, fullClaims(time.Now().Add(2*time.Minute)))
	newExpiry := time.Now().Add(1 * time.Hour)
	newToken := buildToken(t, fullClaims(newExpiry))
	ident := &mockIdentity{newToken: newToken, newExpiry: newExpiry}
	r := newTestResolver(ident)
	sink := &recordSink{}

	result := r.Resolve(context.Background(),
		mapCookies{DefaultSessionCookie: oldToken, DefaultRefreshCookie: "rt"}, sink)

	if result.AccessToken != newToken {
		t.Fatal("expected rotated access token")
	}
	if result.User == nil || result.User.ExpiresAt != newExpiry.Unix() {
		t.Errorf("User expiry = %+v, want %d", result.User, newExpiry.Unix())
	}
	if len(sink.set) != 1 {
		t.Fatalf("cookies set = %d, want 1", len(sink.set))
	}
	c := sink.set[0]
	if c.Name != DefaultSessionCookie || c.Value != newToken {
		t.Errorf("rotated cookie = %+v", c)
	}
	if !c.HttpOnly {
		t.Error("rotated cookie not HttpOnly")
	}
	if got, want := c.Expires.Unix(), newExpiry.Unix(); got != want {
		t.Errorf("cookie Expires = %d, want %d", got, want)
	}
}

func TestResolve_SoftExpiring_NoSink(t *testing.T) {
	token := buildToken(t, fullClaims(time.Now().Add(2*time.Minute)))
	ident := &mockIdentity{}
	r := newTestResolver(ident)

	result := r.Resolve(context.Background(),
		mapCookies{DefaultSessionCookie: token, DefaultRefreshCookie: "rt"}, nil)

	if result.User == nil || result.AccessToken != token {
		t.Errorf("Resolve() = %+v, want stale pair", result)
	}
	if n := ident.refreshCalls.Load(); n != 0 {
		t.Errorf("refresh calls = %d, want 0 in read-only context", n)
	}
}

func TestResolve_SoftExpiring_RefreshFailure(t *testing.T) {
	token := buildToken(t, fullClaims(time.Now().Add(2*time.Minute)))
	ident := &mockIdentity{refreshErr: context.DeadlineExceeded}
	r := newTestResolver(ident)
	sink := &recordSink{}

	result := r.Resolve(context.Background(),
		mapCookies{DefaultSessionCookie: token, DefaultRefreshCookie: "rt"}, sink)

	if result.User == nil || result.AccessToken != token {
		t.Errorf("Resolve() = %+v, want stale pair on refresh failure", result)
	}
	if len(sink.set) != 0 {
		t.Errorf("cookies set = %d, want 0", len(sink.set))
	}
}

func TestResolve_RefreshReturnsStaleToken(t *testing.T) {
	oldToken := buildToken(t, fullClaims(time.Now().Add(2*time.Minute)))
	// The refreshed token is itself already inside the threshold.
	staleExpiry := time.Now().Add(1 * time.Minute)
	ident := &mockIdentity{
		newToken:  buildToken(t, fullClaims(staleExpiry)),
		newExpiry: staleExpiry,
	}
	r := newTestResolver(ident)
	sink := &recordSink{}

	result := r.Resolve(context.Background(),
		mapCookies{DefaultSessionCookie: oldToken, DefaultRefreshCookie: "rt"}, sink)

	if result.AccessToken != oldToken {
		t.Error("expected old token kept when refresh returns a stale one")
	}
	if len(sink.set) != 0 {
		t.Errorf("cookies set = %d, want 0", len(sink.set))
	}
}

func TestResolve_ConcurrentRefresh_SingleFlight(t *testing.T) {
	oldToken := buildToken(t, fullClaims(time.Now().Add(2*time.Minute)))
	newExpiry := time.Now().Add(1 * time.Hour)
	ident := &mockIdentity{
		newToken:     buildToken(t, fullClaims(newExpiry)),
		newExpiry:    newExpiry,
		refreshDelay: 50 * time.Millisecond,
	}
	r := newTestResolver(ident)
	cookies := mapCookies{DefaultSessionCookie: oldToken, DefaultRefreshCookie: "rt"}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]gateway.SessionResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), cookies, &recordSink{})
		}(i)
	}
	wg.Wait()

	if n := ident.refreshCalls.Load(); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
	for i, res := range results {
		if res.User == nil || res.AccessToken != ident.newToken {
			t.Errorf("caller %d did not observe the shared refresh outcome: %+v", i, res)
		}
	}
}

// A refresh finishing clears the in-flight slot, so a later resolution
// starts a fresh one.
func TestResolve_SequentialRefreshes_NotDeduplicated(t *testing.T) {
	oldToken := buildToken(t, fullClaims(time.Now().Add(2*time.Minute)))
	newExpiry := time.Now().Add(1 * time.Hour)
	ident := &mockIdentity{
		newToken:  buildToken(t, fullClaims(newExpiry)),
		newExpiry: newExpiry,
	}
	r := newTestResolver(ident)
	cookies := mapCookies{DefaultSessionCookie: oldToken, DefaultRefreshCookie: "rt"}

	r.Resolve(context.Background(), cookies, &recordSink{})
	r.Resolve(context.Background(), cookies, &recordSink{})

	if n := ident.refreshCalls.Load(); n != 2 {
		t.Errorf("refresh calls = %d, want 2", n)
	}
}
