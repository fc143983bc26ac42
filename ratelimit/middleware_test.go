package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(h http.Handler, method, target, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestInterceptor_AdmitsUpToMax(t *testing.T) {
	h := Interceptor(Options{
		Limiter: &WindowLimiter{Store: NewMemoryStore(), Max: 5, Window: time.Minute},
		Logger:  quietLogger(),
	})(okHandler())

	// Six rapid requests from 1.2.3.4: five pass, the sixth is denied.
	want := []int{200, 200, 200, 200, 200, 429}
	for i, status := range want {
		rec := doRequest(h, http.MethodGet, "/page", "1.2.3.4")
		if rec.Code != status {
			t.Errorf("request %d status = %d, want %d", i+1, rec.Code, status)
		}
	}
}

func TestInterceptor_DenialBody(t *testing.T) {
	h := Interceptor(Options{
		Limiter: &WindowLimiter{Store: NewMemoryStore(), Max: 0, Window: time.Minute},
		Logger:  quietLogger(),
	})(okHandler())

	rec := doRequest(h, http.MethodGet, "/page", "1.2.3.4")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["message"] != "too many requests" {
		t.Errorf("message = %q", body["message"])
	}
}

func TestInterceptor_WindowReset(t *testing.T) {
	store := NewMemoryStore()
	base := time.Now()
	store.now = func() time.Time { return base }

	h := Interceptor(Options{
		Limiter: &WindowLimiter{Store: store, Max: 2, Window: time.Minute},
		Logger:  quietLogger(),
	})(okHandler())

	for i := 0; i < 3; i++ {
		doRequest(h, http.MethodGet, "/page", "9.9.9.9")
	}
	if rec := doRequest(h, http.MethodGet, "/page", "9.9.9.9"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 before window elapses", rec.Code)
	}

	store.now = func() time.Time { return base.Add(61 * time.Second) }
	if rec := doRequest(h, http.MethodGet, "/page", "9.9.9.9"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 after window elapses", rec.Code)
	}
}

func TestInterceptor_Blacklist(t *testing.T) {
	store := NewMemoryStore()
	h := Interceptor(Options{
		Limiter:   &WindowLimiter{Store: store, Max: 5, Window: time.Minute},
		Blacklist: []string{"6.6.6.6"},
		Logger:    quietLogger(),
	})(okHandler())

	for i := 0; i < 3; i++ {
		rec := doRequest(h, http.MethodGet, "/page", "6.6.6.6")
		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		var body map[string]string
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if body["message"] != "not allowed" {
			t.Errorf("message = %q", body["message"])
		}
	}

	// Denial never touches the counter table.
	if got := store.Len(); got != 0 {
		t.Errorf("store keys = %d, want 0", got)
	}
}

func TestInterceptor_NonMatchingRequestsPassThrough(t *testing.T) {
	h := Interceptor(Options{
		Limiter: &WindowLimiter{Store: NewMemoryStore(), Max: 1, Window: time.Minute},
		Match:   SensitiveMatch,
		Logger:  quietLogger(),
	})(okHandler())

	// GETs are not sensitive; the cap never applies.
	for i := 0; i < 5; i++ {
		if rec := doRequest(h, http.MethodGet, "/page", "1.2.3.4"); rec.Code != http.StatusOK {
			t.Fatalf("GET %d status = %d, want 200", i, rec.Code)
		}
	}

	if rec := doRequest(h, http.MethodPost, "/page", "1.2.3.4"); rec.Code != http.StatusOK {
		t.Fatalf("first POST status = %d, want 200", rec.Code)
	}
	if rec := doRequest(h, http.MethodPost, "/page", "1.2.3.4"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second POST status = %d, want 429", rec.Code)
	}
}

func TestInterceptor_StoreFailureFailsOpen(t *testing.T) {
	h := Interceptor(Options{
		Limiter: failingAdmitter{},
		Logger:  quietLogger(),
	})(okHandler())

	if rec := doRequest(h, http.MethodGet, "/page", "1.2.3.4"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when the store fails", rec.Code)
	}
}

var errStoreDown = errors.New("store down")

type failingAdmitter struct{}

func (failingAdmitter) Admit(_ context.Context, _ string) (Decision, error) {
	return Decision{}, errStoreDown
}
