package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"eventledger/internal/cache"
	"eventledger/internal/core"
)

var (
	ErrInvalidToken = errors.New("invalid or expired session")
	ErrMissingToken = errors.New("session token required")
)

// SessionStore persists login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s core.Session) error
	GetSession(ctx context.Context, id string) (core.Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
	GetUserByID(ctx context.Context, id core.UserID) (core.User, error)
}

// Principal is the authenticated identity a request acts for.
type Principal struct {
	UserID    core.UserID
	Username  string
	SessionID string
	ExpiresAt time.Time
}

// Claims of the session token. Subject is the user id and ID the session id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// SessionManager issues and resolves session tokens. A token is only valid
// while its session row exists, so logout revokes it server side.
type SessionManager struct {
	store  SessionStore
	secret []byte
	ttl    time.Duration
	cache  cache.Cache[Principal]
	now    func() time.Time
}

// NewSessionManager creates a manager. principals may be nil to disable caching.
func NewSessionManager(store SessionStore, secret string, ttl time.Duration, principals cache.Cache[Principal]) *SessionManager {
	return &SessionManager{
		store:  store,
		secret: []byte(secret),
		ttl:    ttl,
		cache:  principals,
		now:    time.Now,
	}
}

// TTL is the lifetime of newly issued sessions.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for user and returns its signed token.
func (m *SessionManager) Issue(ctx context.Context, user core.User) (string, Principal, error) {
	now := m.now().UTC()
	sess := core.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	if _, err := m.store.DeleteExpiredSessions(ctx); err != nil {
		return "", Principal{}, fmt.Errorf("purge expired sessions: %w", err)
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return "", Principal{}, fmt.Errorf("create session: %w", err)
	}

	claims := Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(int64(user.ID), 10),
			ID:        sess.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Principal{}, fmt.Errorf("sign session token: %w", err)
	}

	p := Principal{UserID: user.ID, Username: user.Username, SessionID: sess.ID, ExpiresAt: sess.ExpiresAt}
	if m.cache != nil {
		m.cache.Set(sess.ID, p)
	}
	return token, p, nil
}

// Resolve validates a token and returns the principal it belongs to.
func (m *SessionManager) Resolve(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrMissingToken
	}
	claims, err := m.parse(token, true)
	if err != nil {
		return Principal{}, err
	}

	if m.cache != nil {
		if p, ok := m.cache.Get(claims.ID); ok && m.now().Before(p.ExpiresAt) {
			return p, nil
		}
	}

	sess, err := m.store.GetSession(ctx, claims.ID)
	if errors.Is(err, core.ErrNotFound) {
		return Principal{}, ErrInvalidToken
	}
	if err != nil {
		return Principal{}, err
	}
	if !m.now().Before(sess.ExpiresAt) || strconv.FormatInt(int64(sess.UserID), 10) != claims.Subject {
		return Principal{}, ErrInvalidToken
	}

	user, err := m.store.GetUserByID(ctx, sess.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return Principal{}, ErrInvalidToken
	}
	if err != nil {
		return Principal{}, err
	}

	p := Principal{UserID: user.ID, Username: user.Username, SessionID: sess.ID, ExpiresAt: sess.ExpiresAt}
	if m.cache != nil {
		m.cache.Set(sess.ID, p)
	}
	return p, nil
}

// Revoke deletes the session behind token. Expired but correctly signed
// tokens are accepted so a stale cookie can still log out.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := m.parse(token, false)
	if err != nil {
		return err
	}
	if m.cache != nil {
		m.cache.Delete(claims.ID)
	}
	return m.store.DeleteSession(ctx, claims.ID)
}

func (m *SessionManager) parse(token string, validateClaims bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if !validateClaims {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
