// Package principal resolves the authenticated user of a request from its
// session cookie and stores it in the request context.
package principal

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"eventledger/internal/auth"
)

// CookieName is the session cookie set at login.
const CookieName = "eventledger_session"

type contextKey string

const principalKey contextKey = "principal"

// Resolver turns a session token into a principal.
type Resolver interface {
	Resolve(ctx context.Context, token string) (auth.Principal, error)
}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext returns the request principal, if any.
func FromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(auth.Principal)
	return p, ok
}

// TokenFromRequest reads the session cookie, falling back to a bearer token.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

// Guard resolves principals for protected and optional routes.
type Guard struct {
	resolver       Resolver
	logger         *slog.Logger
	onUnauthorized func(http.ResponseWriter, *http.Request)
	observe        func(result string)
}

// NewGuard builds a guard. onUnauthorized writes the 401 response; observe
// may be nil.
func NewGuard(resolver Resolver, logger *slog.Logger, onUnauthorized func(http.ResponseWriter, *http.Request), observe func(string)) *Guard {
	if observe == nil {
		observe = func(string) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{resolver: resolver, logger: logger, onUnauthorized: onUnauthorized, observe: observe}
}

// Require rejects requests without a valid session before the handler runs.
func (g *Guard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := g.resolve(r)
		if !ok {
			g.onUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

// RequireFunc is Require for handler functions.
func (g *Guard) RequireFunc(next http.HandlerFunc) http.Handler {
	return g.Require(next)
}

// Optional attaches the principal when there is one and always calls next.
func (g *Guard) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := g.resolve(r); ok {
			r = r.WithContext(WithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) resolve(r *http.Request) (auth.Principal, bool) {
	token := TokenFromRequest(r)
	if token == "" {
		g.observe("anonymous")
		return auth.Principal{}, false
	}
	p, err := g.resolver.Resolve(r.Context(), token)
	if err != nil {
		g.observe("rejected")
		if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrMissingToken) {
			g.logger.ErrorContext(r.Context(), "Session lookup failed", "component", "auth", "error", err)
		}
		return auth.Principal{}, false
	}
	g.observe("ok")
	return p, true
}
