package storage

import (
	"context"
	"database/sql"

	"eventledger/internal/core"
)

const incomeColumns = `id, event_id, name, quantity, price_per_unit, created_at`

func scanIncome(s scanner) (core.StandaloneIncome, error) {
	var (
		in      core.StandaloneIncome
		created string
	)
	if err := s.Scan(&in.ID, &in.EventID, &in.Name, &in.Quantity, &in.PricePerUnit, &created); err != nil {
		return core.StandaloneIncome{}, err
	}
	ts, err := parseTime(created)
	if err != nil {
		return core.StandaloneIncome{}, err
	}
	in.CreatedAt = ts
	in.Total = core.IncomeTotal(in)
	return in, nil
}

func queryIncomes(ctx context.Context, tx *sql.Tx, clause string, args ...any) ([]core.StandaloneIncome, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+qualified("i", incomeColumns)+` FROM income_without_expense i `+clause+` ORDER BY i.created_at, i.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.StandaloneIncome, 0)
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AddIncome(ctx context.Context, owner core.UserID, eventID int64, in core.IncomeInput) (core.StandaloneIncome, error) {
	inc, err := scanIncome(r.db.QueryRowContext(ctx, `
		INSERT INTO income_without_expense (event_id, name, quantity, price_per_unit, created_at)
		SELECT id, ?, ?, ?, ? FROM events WHERE id = ? AND user_id = ?
		RETURNING `+incomeColumns,
		in.Name, in.Quantity, in.PricePerUnit, r.timestamp(), eventID, int64(owner)))
	if err != nil {
		return core.StandaloneIncome{}, classify("add income", err)
	}
	return inc, nil
}

func (r *SQLiteRepository) UpdateIncome(ctx context.Context, owner core.UserID, id int64, in core.IncomeInput) (core.StandaloneIncome, error) {
	inc, err := scanIncome(r.db.QueryRowContext(ctx, `
		UPDATE income_without_expense
		SET name = ?, quantity = ?, price_per_unit = ?
		WHERE id = ? AND `+ownedEvent+`
		RETURNING `+incomeColumns,
		in.Name, in.Quantity, in.PricePerUnit, id, int64(owner)))
	if err != nil {
		return core.StandaloneIncome{}, classify("update income", err)
	}
	return inc, nil
}

// DeleteIncome removes a standalone income and returns the id of its event.
func (r *SQLiteRepository) DeleteIncome(ctx context.Context, owner core.UserID, id int64) (int64, error) {
	var eventID int64
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM income_without_expense WHERE id = ? AND `+ownedEvent+` RETURNING event_id`,
		id, int64(owner)).Scan(&eventID)
	if err != nil {
		return 0, classify("delete income", err)
	}
	return eventID, nil
}
