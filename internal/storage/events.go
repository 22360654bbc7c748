package storage

import (
	"context"
	"database/sql"

	"eventledger/internal/core"
)

type scanner interface {
	Scan(dest ...any) error
}

const eventColumns = `id, user_id, name, created_at`

func scanEvent(s scanner) (core.Event, error) {
	var (
		e       core.Event
		owner   int64
		created string
	)
	if err := s.Scan(&e.ID, &owner, &e.Name, &created); err != nil {
		return core.Event{}, err
	}
	e.Owner = core.UserID(owner)
	ts, err := parseTime(created)
	if err != nil {
		return core.Event{}, err
	}
	e.CreatedAt = ts
	return e, nil
}

func (r *SQLiteRepository) CreateEvent(ctx context.Context, owner core.UserID, name string) (core.Event, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO events (user_id, name, created_at) VALUES (?, ?, ?) RETURNING `+eventColumns,
		int64(owner), name, r.timestamp())
	e, err := scanEvent(row)
	if err != nil {
		return core.Event{}, core.Storage("create event", err)
	}
	return e, nil
}

// ListEvents returns the owner's events, newest first, with child counts and
// totals.
func (r *SQLiteRepository) ListEvents(ctx context.Context, owner core.UserID) ([]core.EventSummary, error) {
	var out []core.EventSummary
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT e.id, e.user_id, e.name, e.created_at,
			       (SELECT COUNT(*) FROM event_responsibles r WHERE r.event_id = e.id),
			       (SELECT COUNT(*) FROM expenses x WHERE x.event_id = e.id),
			       (SELECT COUNT(*) FROM income_without_expense i WHERE i.event_id = e.id)
			FROM events e
			WHERE e.user_id = ?
			ORDER BY e.created_at DESC, e.id DESC`, int64(owner))
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]core.EventSummary, 0)
		for rows.Next() {
			var (
				s       core.EventSummary
				ownerID int64
				created string
			)
			if err := rows.Scan(&s.ID, &ownerID, &s.Name, &created,
				&s.ResponsibleCount, &s.ExpenseCount, &s.IncomeCount); err != nil {
				return err
			}
			s.Owner = core.UserID(ownerID)
			if s.CreatedAt, err = parseTime(created); err != nil {
				return err
			}
			out = append(out, s)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}

		expenses, err := queryExpenses(ctx, tx,
			`JOIN events e ON e.id = x.event_id WHERE e.user_id = ?`, int64(owner))
		if err != nil {
			return err
		}
		incomes, err := queryIncomes(ctx, tx,
			`JOIN events e ON e.id = i.event_id WHERE e.user_id = ?`, int64(owner))
		if err != nil {
			return err
		}

		expByEvent := make(map[int64][]core.Expense)
		for _, x := range expenses {
			expByEvent[x.EventID] = append(expByEvent[x.EventID], x)
		}
		incByEvent := make(map[int64][]core.StandaloneIncome)
		for _, i := range incomes {
			incByEvent[i.EventID] = append(incByEvent[i.EventID], i)
		}
		for k := range out {
			out[k].Totals = core.ComputeTotals(expByEvent[out[k].ID], incByEvent[out[k].ID])
		}
		return nil
	})
	if err != nil {
		return nil, core.Storage("list events", err)
	}
	return out, nil
}

// GetEventDetail loads an event and all of its children from one snapshot.
func (r *SQLiteRepository) GetEventDetail(ctx context.Context, owner core.UserID, id int64) (core.EventDetail, error) {
	var d core.EventDetail
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		ev, err := scanEvent(tx.QueryRowContext(ctx,
			`SELECT `+eventColumns+` FROM events WHERE id = ? AND user_id = ?`, id, int64(owner)))
		if err != nil {
			return err
		}
		d.Event = ev

		if d.Responsibles, err = queryResponsibles(ctx, tx, `WHERE r.event_id = ?`, id); err != nil {
			return err
		}
		if d.Expenses, err = queryExpenses(ctx, tx, `WHERE x.event_id = ?`, id); err != nil {
			return err
		}
		d.Incomes, err = queryIncomes(ctx, tx, `WHERE i.event_id = ?`, id)
		return err
	})
	if err != nil {
		return core.EventDetail{}, classify("get event", err)
	}
	d.Totals = core.ComputeTotals(d.Expenses, d.Incomes)
	d.Groups = core.GroupByCategory(d.Expenses)
	d.IncomeEligible = core.IncomeLines(d.Expenses)
	return d, nil
}

func (r *SQLiteRepository) UpdateEvent(ctx context.Context, owner core.UserID, id int64, name string) (core.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx,
		`UPDATE events SET name = ? WHERE id = ? AND user_id = ? RETURNING `+eventColumns,
		name, id, int64(owner)))
	if err != nil {
		return core.Event{}, classify("update event", err)
	}
	return e, nil
}

// DeleteEvent removes an event and all of its children in one transaction.
// Children are deleted explicitly; the cascading foreign keys are a second line.
func (r *SQLiteRepository) DeleteEvent(ctx context.Context, owner core.UserID, id int64) error {
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var found int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM events WHERE id = ? AND user_id = ?`, id, int64(owner)).Scan(&found); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM event_responsibles WHERE event_id = ?`,
			`DELETE FROM expenses WHERE event_id = ?`,
			`DELETE FROM income_without_expense WHERE event_id = ?`,
			`DELETE FROM events WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return err
			}
		}
		return nil
	})
	return classify("delete event", err)
}

// ListEventRefs returns every event with its owner, for report reconciliation.
func (r *SQLiteRepository) ListEventRefs(ctx context.Context) ([]core.EventRef, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id, id FROM events ORDER BY id`)
	if err != nil {
		return nil, core.Storage("list event refs", err)
	}
	defer rows.Close()

	var refs []core.EventRef
	for rows.Next() {
		var owner, id int64
		if err := rows.Scan(&owner, &id); err != nil {
			return nil, core.Storage("list event refs", err)
		}
		refs = append(refs, core.EventRef{Owner: core.UserID(owner), EventID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, core.Storage("list event refs", err)
	}
	return refs, nil
}
