package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"eventledger/internal/auth"
	"eventledger/internal/cache"
	"eventledger/internal/core"
	applog "eventledger/internal/log"
	"eventledger/internal/metrics"
	"eventledger/internal/middleware/principal"
	"eventledger/internal/middleware/ratelimit"
	"eventledger/internal/middleware/security"
	"eventledger/internal/middleware/trace"
)

// Ledger is the owner-scoped ledger the handlers drive.
// *services.LedgerService implements it.
type Ledger interface {
	CreateEvent(ctx context.Context, owner core.UserID, name string) (core.Event, error)
	ListEvents(ctx context.Context, owner core.UserID) ([]core.EventSummary, error)
	GetEvent(ctx context.Context, owner core.UserID, id int64) (core.EventDetail, error)
	UpdateEvent(ctx context.Context, owner core.UserID, id int64, name string) (core.Event, error)
	DeleteEvent(ctx context.Context, owner core.UserID, id int64) error

	AddResponsible(ctx context.Context, owner core.UserID, eventID int64, name string) (core.Responsible, error)
	UpdateResponsible(ctx context.Context, owner core.UserID, eventID, id int64, name string) (core.Responsible, error)
	DeleteResponsible(ctx context.Context, owner core.UserID, eventID, id int64) error

	AddExpense(ctx context.Context, owner core.UserID, eventID int64, in core.ExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, owner core.UserID, id int64, in core.ExpenseInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, owner core.UserID, id int64) error

	AddIncome(ctx context.Context, owner core.UserID, eventID int64, in core.IncomeInput) (core.StandaloneIncome, error)
	UpdateIncome(ctx context.Context, owner core.UserID, id int64, in core.IncomeInput) (core.StandaloneIncome, error)
	DeleteIncome(ctx context.Context, owner core.UserID, id int64) error
}

// Authenticator checks login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (core.User, error)
}

// Sessions issues, resolves and revokes session tokens.
type Sessions interface {
	principal.Resolver
	Issue(ctx context.Context, user core.User) (string, auth.Principal, error)
	Revoke(ctx context.Context, token string) error
	TTL() time.Duration
}

// Pinger backs the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators of the server. Metrics, Caches and
// Health may be nil.
type Dependencies struct {
	Ledger        Ledger
	Authenticator Authenticator
	Sessions      Sessions
	Health        Pinger
	Metrics       *metrics.Metrics
	Caches        *cache.Manager
	Logger        *applog.Logger
}

// Options tune the transport.
type Options struct {
	RateLimitPerMinute int
	TrustedProxies     []string
	CookieSecure       bool
}

// Server is the JSON API.
type Server struct {
	http.Server

	ledger   Ledger
	authn    Authenticator
	sessions Sessions
	health   Pinger
	metrics  *metrics.Metrics
	caches   *cache.Manager
	logger   *applog.Logger

	limiter      *ratelimit.Limiter
	guard        *principal.Guard
	cookieSecure bool
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies, opts Options) (*Server, error) {
	if deps.Ledger == nil || deps.Authenticator == nil || deps.Sessions == nil {
		return nil, errors.New("http: ledger, authenticator and sessions are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			return nil, fmt.Errorf("trusted proxies: %w", err)
		}
	}

	s := &Server{
		ledger:       deps.Ledger,
		authn:        deps.Authenticator,
		sessions:     deps.Sessions,
		health:       deps.Health,
		metrics:      deps.Metrics,
		caches:       deps.Caches,
		logger:       logger.WithComponent(applog.ComponentHTTP),
		cookieSecure: opts.CookieSecure,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}
	s.guard = principal.NewGuard(deps.Sessions, logger.WithComponent(applog.ComponentAuth).Logger,
		func(w http.ResponseWriter, r *http.Request) { _ = UnauthorizedError().Write(w) },
		s.metrics.PrincipalLookup)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(detector.ExtractClientIP, s.rateLimited)(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = applog.Middleware(logger)(handler)
	handler = trace.NewMiddleware(detector.ExtractClientIP, logger, s.metrics).Middleware(handler)
	handler = detector.Middleware(logger.WithComponent(applog.ComponentSecurity).Logger, s.metrics.SuspiciousRequest)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(mux *http.ServeMux) {
	s.handle(mux, "GET /healthz", http.HandlerFunc(handleHealth))
	s.handle(mux, "GET /readyz", http.HandlerFunc(s.handleReady))
	if s.metrics != nil {
		s.handle(mux, "GET /metrics", s.metrics.Handler())
	}

	s.handle(mux, "POST /api/login", http.HandlerFunc(s.handleLogin))
	s.handle(mux, "POST /api/logout", http.HandlerFunc(s.handleLogout))
	s.handle(mux, "GET /api/check-auth", s.guard.Optional(http.HandlerFunc(s.handleCheckAuth)))

	protected := map[string]http.HandlerFunc{
		"GET /api/events":         s.handleListEvents,
		"POST /api/events":        s.handleCreateEvent,
		"GET /api/events/{id}":    s.handleGetEvent,
		"PUT /api/events/{id}":    s.handleUpdateEvent,
		"DELETE /api/events/{id}": s.handleDeleteEvent,

		"POST /api/events/{id}/responsibles":         s.handleAddResponsible,
		"PUT /api/events/{id}/responsibles/{rid}":    s.handleUpdateResponsible,
		"DELETE /api/events/{id}/responsibles/{rid}": s.handleDeleteResponsible,

		"POST /api/events/{id}/expenses": s.handleAddExpense,
		"PUT /api/expenses/{id}":         s.handleUpdateExpense,
		"DELETE /api/expenses/{id}":      s.handleDeleteExpense,

		"POST /api/events/{id}/income-without-expense": s.handleAddIncome,
		"PUT /api/income-without-expense/{id}":         s.handleUpdateIncome,
		"DELETE /api/income-without-expense/{id}":      s.handleDeleteIncome,
	}
	for pattern, h := range protected {
		s.handle(mux, pattern, s.guard.Require(h))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_ = NotFoundError("Not found").Write(w)
	})
}

// handle registers h and reports the matched pattern to the request metrics.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		trace.SetRoute(r.Context(), r.Pattern)
		h.ServeHTTP(w, r)
	}))
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	_ = TooManyRequestsError().Write(w)
}

// Shutdown stops background work and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.caches != nil {
			s.caches.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed",
				applog.FieldErrorType, applog.ErrorTypeDatabase,
				applog.FieldError, err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
