package sheets

import (
	"strconv"
	"strings"
	"time"

	"eventledger/internal/core"
)

// ReportRow is the exported summary of one event.
type ReportRow struct {
	EventID      int64
	Owner        string
	Name         string
	Responsibles int
	Expenses     int
	Incomes      int
	Totals       core.Totals
	UpdatedAt    time.Time
}

// Header is the first row of a report sheet.
var Header = []any{
	"EventID", "Owner", "Name", "Responsibles", "Expenses", "Incomes",
	"TotalExpenses", "IncomeFromExpenses", "IncomeWithoutExpenses", "TotalIncome",
	"ProfitLoss", "UpdatedAt",
}

// NewReportRow summarizes an event detail.
func NewReportRow(d core.EventDetail, owner string, now time.Time) ReportRow {
	return ReportRow{
		EventID:      d.ID,
		Owner:        owner,
		Name:         d.Name,
		Responsibles: len(d.Responsibles),
		Expenses:     len(d.Expenses),
		Incomes:      len(d.Incomes),
		Totals:       d.Totals,
		UpdatedAt:    now.UTC(),
	}
}

// Values renders the row in Header order.
func (r ReportRow) Values() []any {
	return []any{
		r.EventID,
		r.Owner,
		r.Name,
		r.Responsibles,
		r.Expenses,
		r.Incomes,
		r.Totals.TotalExpenses,
		r.Totals.IncomeFromExpenses,
		r.Totals.IncomeWithoutExpenses,
		r.Totals.TotalIncome,
		r.Totals.ProfitLoss,
		r.UpdatedAt.Format(time.RFC3339),
	}
}

// ParseEventID reads an event id cell. Sheets hands numbers back as float64
// or as text depending on the value render option.
func ParseEventID(cell any) (int64, bool) {
	switch v := cell.(type) {
	case float64:
		if v <= 0 || v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, v > 0
	case int:
		return int64(v), v > 0
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}
