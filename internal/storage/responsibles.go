package storage

import (
	"context"
	"database/sql"

	"eventledger/internal/core"
)

const responsibleColumns = `id, event_id, name, created_at`

// ownedEvent restricts a child row to events of one owner. The owner id is
// the last bind parameter.
const ownedEvent = `event_id IN (SELECT id FROM events WHERE user_id = ?)`

func scanResponsible(s scanner) (core.Responsible, error) {
	var (
		p       core.Responsible
		created string
	)
	if err := s.Scan(&p.ID, &p.EventID, &p.Name, &created); err != nil {
		return core.Responsible{}, err
	}
	ts, err := parseTime(created)
	if err != nil {
		return core.Responsible{}, err
	}
	p.CreatedAt = ts
	return p, nil
}

func queryResponsibles(ctx context.Context, tx *sql.Tx, where string, args ...any) ([]core.Responsible, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+qualified("r", responsibleColumns)+` FROM event_responsibles r `+where+` ORDER BY r.created_at, r.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.Responsible, 0)
	for rows.Next() {
		p, err := scanResponsible(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddResponsible attaches a person to an event of owner.
func (r *SQLiteRepository) AddResponsible(ctx context.Context, owner core.UserID, eventID int64, name string) (core.Responsible, error) {
	p, err := scanResponsible(r.db.QueryRowContext(ctx, `
		INSERT INTO event_responsibles (event_id, name, created_at)
		SELECT id, ?, ? FROM events WHERE id = ? AND user_id = ?
		RETURNING `+responsibleColumns,
		name, r.timestamp(), eventID, int64(owner)))
	if err != nil {
		return core.Responsible{}, classify("add responsible", err)
	}
	return p, nil
}

func (r *SQLiteRepository) UpdateResponsible(ctx context.Context, owner core.UserID, eventID, id int64, name string) (core.Responsible, error) {
	p, err := scanResponsible(r.db.QueryRowContext(ctx, `
		UPDATE event_responsibles SET name = ?
		WHERE id = ? AND event_id = ? AND `+ownedEvent+`
		RETURNING `+responsibleColumns,
		name, id, eventID, int64(owner)))
	if err != nil {
		return core.Responsible{}, classify("update responsible", err)
	}
	return p, nil
}

func (r *SQLiteRepository) DeleteResponsible(ctx context.Context, owner core.UserID, eventID, id int64) error {
	var deleted int64
	err := r.db.QueryRowContext(ctx, `
		DELETE FROM event_responsibles
		WHERE id = ? AND event_id = ? AND `+ownedEvent+`
		RETURNING id`,
		id, eventID, int64(owner)).Scan(&deleted)
	return classify("delete responsible", err)
}
