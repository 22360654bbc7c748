package storage

import (
	"context"
	"database/sql"
	"fmt"

	"eventledger/internal/core"
)

// CreateUser inserts a user with an already hashed password.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (core.User, error) {
	created := r.timestamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, created)
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, fmt.Errorf("create user %q: %w", username, ErrUsernameTaken)
		}
		return core.User{}, core.Storage("create user", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, core.Storage("create user", err)
	}
	ts, _ := parseTime(created)
	return core.User{ID: core.UserID(id), Username: username, PasswordHash: passwordHash, CreatedAt: ts}, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	return scanUser(row, "get user by username")
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id core.UserID) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, int64(id))
	return scanUser(row, "get user by id")
}

// CountUsers returns the number of registered users.
func (r *SQLiteRepository) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, core.Storage("count users", err)
	}
	return n, nil
}

func scanUser(row *sql.Row, op string) (core.User, error) {
	var (
		u       core.User
		id      int64
		created string
	)
	if err := row.Scan(&id, &u.Username, &u.PasswordHash, &created); err != nil {
		return core.User{}, classify(op, err)
	}
	u.ID = core.UserID(id)
	ts, err := parseTime(created)
	if err != nil {
		return core.User{}, core.Storage(op, err)
	}
	u.CreatedAt = ts
	return u, nil
}
