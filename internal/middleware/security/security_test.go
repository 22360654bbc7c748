package security

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()
	cases := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public peer", "203.0.113.9:1234", "", "", "203.0.113.9"},
		{"public peer cannot spoof", "203.0.113.9:1234", "1.1.1.1", "", "203.0.113.9"},
		{"trusted proxy forwards", "10.0.0.2:80", "198.51.100.7, 10.0.0.2", "", "198.51.100.7"},
		{"trusted proxy real ip", "127.0.0.1:80", "", "198.51.100.8", "198.51.100.8"},
		{"garbage forwarded header", "127.0.0.1:80", "not-an-ip", "", "127.0.0.1"},
	}
	for _, tc := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tc.remote
		if tc.xff != "" {
			r.Header.Set("X-Forwarded-For", tc.xff)
		}
		if tc.xri != "" {
			r.Header.Set("X-Real-IP", tc.xri)
		}
		if got := d.ExtractClientIP(r); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}

func TestIsSuspicious(t *testing.T) {
	d := NewDetector()
	if d.IsSuspicious(httptest.NewRequest(http.MethodGet, "/api/events/1", nil)) {
		t.Fatalf("normal API request flagged")
	}
	for _, target := range []string{
		"/.env",
		"/api/events?q=union%20select",
		"/api/events?q=UNION+SELECT",
		"/api/events?q=%3Cscript%3Ealert(1)",
		"/wp-admin/",
	} {
		if !d.IsSuspicious(httptest.NewRequest(http.MethodGet, target, nil)) {
			t.Fatalf("%s should be flagged", target)
		}
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", "sqlmap/1.7")
	if !d.IsSuspicious(r) {
		t.Fatalf("scanner user agent should be flagged")
	}
}

func TestMiddleware_FlagsButServes(t *testing.T) {
	d := NewDetector()
	flags := 0
	h := d.Middleware(slog.New(slog.NewTextHandler(io.Discard, nil)), func() { flags++ })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.git/config", nil))
	if rec.Code != http.StatusNoContent || flags != 1 || d.Flagged() != 1 {
		t.Fatalf("expected served and flagged once, got code=%d flags=%d", rec.Code, flags)
	}
}

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatalf("missing security headers: %v", rec.Header())
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be sent over plain HTTP")
	}
}
