package storage

import (
	"context"

	"eventledger/internal/core"
)

func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
		s.ID, int64(s.UserID), formatTime(s.CreatedAt), formatTime(s.ExpiresAt))
	return core.Storage("create session", err)
}

// GetSession returns the session with the given id. Expired sessions are
// returned too; callers compare ExpiresAt.
func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (core.Session, error) {
	var (
		s                core.Session
		userID           int64
		created, expires string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, expires_at FROM sessions WHERE id = ?`, id).
		Scan(&s.ID, &userID, &created, &expires)
	if err != nil {
		return core.Session{}, classify("get session", err)
	}
	s.UserID = core.UserID(userID)
	if s.CreatedAt, err = parseTime(created); err != nil {
		return core.Session{}, core.Storage("get session", err)
	}
	if s.ExpiresAt, err = parseTime(expires); err != nil {
		return core.Session{}, core.Storage("get session", err)
	}
	return s, nil
}

// DeleteSession removes a session. Deleting an unknown session is not an error.
func (r *SQLiteRepository) DeleteSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	return core.Storage("delete session", err)
}

// DeleteExpiredSessions purges sessions that expired before now and reports
// how many were removed.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, r.timestamp())
	if err != nil {
		return 0, core.Storage("delete expired sessions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.Storage("delete expired sessions", err)
	}
	return n, nil
}
