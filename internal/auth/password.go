package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"eventledger/internal/core"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingCredentials = errors.New("username and password are required")
)

// UserStore is the user persistence the authenticator needs.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
}

// PasswordAuthenticator checks username/password pairs against bcrypt hashes.
type PasswordAuthenticator struct {
	store UserStore
	cost  int
	// dummyHash is compared against when the user does not exist so that
	// unknown users take as long as wrong passwords.
	dummyHash []byte
}

func NewPasswordAuthenticator(store UserStore) *PasswordAuthenticator {
	return newPasswordAuthenticator(store, bcrypt.DefaultCost)
}

func newPasswordAuthenticator(store UserStore, cost int) *PasswordAuthenticator {
	dummy, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	return &PasswordAuthenticator{store: store, cost: cost, dummyHash: dummy}
}

// HashPassword hashes a plaintext password with bcrypt.
func (a *PasswordAuthenticator) HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// Register creates a user. The username is trimmed; both fields must be non-empty.
func (a *PasswordAuthenticator) Register(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return core.User{}, ErrMissingCredentials
	}
	hash, err := a.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	return a.store.CreateUser(ctx, username, hash)
}

// Authenticate returns the user when the password matches. Unknown users
// and wrong passwords both yield ErrInvalidCredentials.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	if username == "" || password == "" {
		return core.User{}, ErrMissingCredentials
	}
	user, err := a.store.GetUserByUsername(ctx, username)
	if errors.Is(err, core.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(a.dummyHash, []byte(password))
		return core.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return core.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// SeedAdmin creates the named user when it does not exist yet. It reports
// whether a user was created.
func (a *PasswordAuthenticator) SeedAdmin(ctx context.Context, username, password string) (bool, error) {
	_, err := a.store.GetUserByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return false, err
	}
	if _, err := a.Register(ctx, username, password); err != nil {
		return false, fmt.Errorf("seed user %q: %w", username, err)
	}
	return true, nil
}
