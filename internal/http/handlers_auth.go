package http

import (
	"errors"
	"net/http"
	"time"

	"eventledger/internal/auth"
	applog "eventledger/internal/log"
	"eventledger/internal/middleware/principal"
)

type loginResponse struct {
	Success  bool   `json:"success"`
	Username string `json:"username"`
}

type checkAuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentAuth)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		_ = BadRequestError("Invalid request body").Write(w)
		return
	}
	username, password := p.Get("username"), p.Raw("password")
	if username == "" || password == "" {
		_ = BadRequestError("Username and password are required").Write(w)
		return
	}

	user, err := s.authn.Authenticate(ctx, username, password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		_ = BadRequestError("Username and password are required").Write(w)
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		logger.WarnContext(ctx, "Login rejected",
			applog.FieldOperation, applog.OpLogin,
			applog.FieldUsername, username,
			applog.FieldErrorType, applog.ErrorTypeAuth)
		_ = ErrorResponse(http.StatusUnauthorized, "Invalid credentials").Write(w)
		return
	case err != nil:
		writeError(w, r, err, "")
		return
	}

	token, pr, err := s.sessions.Issue(ctx, user)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	http.SetCookie(w, s.sessionCookie(token, pr.ExpiresAt))

	logger.InfoContext(ctx, "Login succeeded",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUserID, int64(user.ID),
		applog.FieldUsername, user.Username)
	writeJSON(w, http.StatusOK, loginResponse{Success: true, Username: user.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	err := s.sessions.Revoke(ctx, principal.TokenFromRequest(r))
	if err != nil && !errors.Is(err, auth.ErrInvalidToken) {
		writeError(w, r, err, "")
		return
	}
	http.SetCookie(w, s.sessionCookie("", time.Unix(0, 0)))
	applog.FromContext(ctx).WithComponent(applog.ComponentAuth).InfoContext(ctx, "Logout",
		applog.FieldOperation, applog.OpLogout)
	_ = SuccessResponse().Write(w)
}

func (s *Server) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	p, ok := principal.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, checkAuthResponse{})
		return
	}
	writeJSON(w, http.StatusOK, checkAuthResponse{Authenticated: true, Username: p.Username})
}

// sessionCookie builds the session cookie. An empty token expires it.
func (s *Server) sessionCookie(token string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     principal.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(s.sessions.TTL().Seconds())
	}
	return c
}
