package storage

import (
	"context"
	"database/sql"

	"eventledger/internal/core"
)

const expenseColumns = `id, event_id, category, name, quantity, cost_per_unit, selling_price_per_unit, created_at`

func scanExpense(s scanner) (core.Expense, error) {
	var (
		x        core.Expense
		category string
		sell     sql.NullFloat64
		created  string
	)
	if err := s.Scan(&x.ID, &x.EventID, &category, &x.Name, &x.Quantity, &x.CostPerUnit, &sell, &created); err != nil {
		return core.Expense{}, err
	}
	x.Category = core.Category(category)
	x.SellingPricePerUnit = floatPtr(sell)
	ts, err := parseTime(created)
	if err != nil {
		return core.Expense{}, err
	}
	x.CreatedAt = ts
	return x, nil
}

func queryExpenses(ctx context.Context, tx *sql.Tx, clause string, args ...any) ([]core.Expense, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+qualified("x", expenseColumns)+` FROM expenses x `+clause+` ORDER BY x.created_at, x.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		x, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, rows.Err()
}

// AddExpense records an expense on an event of owner. The input must already
// be normalized.
func (r *SQLiteRepository) AddExpense(ctx context.Context, owner core.UserID, eventID int64, in core.ExpenseInput) (core.Expense, error) {
	x, err := scanExpense(r.db.QueryRowContext(ctx, `
		INSERT INTO expenses (event_id, category, name, quantity, cost_per_unit, selling_price_per_unit, created_at)
		SELECT id, ?, ?, ?, ?, ?, ? FROM events WHERE id = ? AND user_id = ?
		RETURNING `+expenseColumns,
		string(in.Category), in.Name, in.Quantity, in.CostPerUnit, nullableFloat(in.SellingPricePerUnit),
		r.timestamp(), eventID, int64(owner)))
	if err != nil {
		return core.Expense{}, classify("add expense", err)
	}
	return x, nil
}

// UpdateExpense replaces every editable field of an expense. Clearing the
// selling price stores NULL.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, owner core.UserID, id int64, in core.ExpenseInput) (core.Expense, error) {
	x, err := scanExpense(r.db.QueryRowContext(ctx, `
		UPDATE expenses
		SET category = ?, name = ?, quantity = ?, cost_per_unit = ?, selling_price_per_unit = ?
		WHERE id = ? AND `+ownedEvent+`
		RETURNING `+expenseColumns,
		string(in.Category), in.Name, in.Quantity, in.CostPerUnit, nullableFloat(in.SellingPricePerUnit),
		id, int64(owner)))
	if err != nil {
		return core.Expense{}, classify("update expense", err)
	}
	return x, nil
}

// DeleteExpense removes an expense and returns the id of its event.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, owner core.UserID, id int64) (int64, error) {
	var eventID int64
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND `+ownedEvent+` RETURNING event_id`,
		id, int64(owner)).Scan(&eventID)
	if err != nil {
		return 0, classify("delete expense", err)
	}
	return eventID, nil
}
