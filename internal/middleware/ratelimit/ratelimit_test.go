package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *time.Time) {
	t.Helper()
	l := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(l.Stop)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_Window(t *testing.T) {
	l, now := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow("a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("a") {
		t.Fatalf("fourth request should be rejected")
	}
	if !l.Allow("b") {
		t.Fatalf("other clients have their own window")
	}

	*now = now.Add(time.Minute)
	if !l.Allow("a") {
		t.Fatalf("window should reset after a minute")
	}
	if l.Rejected() != 1 {
		t.Fatalf("expected 1 rejection, got %d", l.Rejected())
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	l, now := newTestLimiter(t, 10)
	l.Allow("a")
	*now = now.Add(11 * time.Minute)
	l.Allow("b")

	if removed := l.cleanup(); removed != 1 {
		t.Fatalf("expected 1 stale client removed, got %d", removed)
	}
	if l.ActiveClients() != 1 {
		t.Fatalf("expected 1 active client, got %d", l.ActiveClients())
	}
}

func TestLimiter_Middleware(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	var limited int
	h := l.Middleware(
		func(*http.Request) string { return "1.2.3.4" },
		func(w http.ResponseWriter, r *http.Request) {
			limited++
			w.WriteHeader(http.StatusTooManyRequests)
		},
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests || limited != 1 {
		t.Fatalf("second request: expected 429 via onLimit, got %d (calls=%d)", rec.Code, limited)
	}
	if rec.Header().Get("Retry-After") != "61" {
		t.Fatalf("expected Retry-After 61, got %q", rec.Header().Get("Retry-After"))
	}
}
