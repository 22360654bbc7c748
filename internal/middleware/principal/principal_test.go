package principal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"eventledger/internal/auth"
)

type stubResolver map[string]auth.Principal

func (s stubResolver) Resolve(_ context.Context, token string) (auth.Principal, error) {
	p, ok := s[token]
	if !ok {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	return p, nil
}

func TestGuard_Require(t *testing.T) {
	resolver := stubResolver{"good": {UserID: 7, Username: "admin"}}
	var results []string
	g := NewGuard(resolver, nil, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, func(res string) { results = append(results, res) })

	called := false
	h := g.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		p, ok := FromContext(r.Context())
		if !ok || p.UserID != 7 {
			t.Fatalf("expected principal 7 in context, got %+v", p)
		}
	}))

	cases := []struct {
		name   string
		cookie string
		bearer string
		want   int
		called bool
	}{
		{"no token", "", "", http.StatusUnauthorized, false},
		{"bad token", "bad", "", http.StatusUnauthorized, false},
		{"cookie", "good", "", http.StatusOK, true},
		{"bearer", "", "good", http.StatusOK, true},
	}
	for _, tc := range cases {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		if tc.cookie != "" {
			req.AddCookie(&http.Cookie{Name: CookieName, Value: tc.cookie})
		}
		if tc.bearer != "" {
			req.Header.Set("Authorization", "Bearer "+tc.bearer)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.want || called != tc.called {
			t.Fatalf("%s: expected %d called=%v, got %d called=%v", tc.name, tc.want, tc.called, rec.Code, called)
		}
	}
	if len(results) != 4 || results[0] != "anonymous" || results[1] != "rejected" || results[2] != "ok" {
		t.Fatalf("unexpected observations %v", results)
	}
}

func TestGuard_Optional(t *testing.T) {
	g := NewGuard(stubResolver{}, nil, nil, nil)
	var seen bool
	h := g.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, seen = FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/check-auth", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "stale"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || seen {
		t.Fatalf("optional guard must pass through without a principal")
	}
}
