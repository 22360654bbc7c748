package sheets

import (
	"testing"
	"time"

	"eventledger/internal/core"
)

func TestNewReportRow(t *testing.T) {
	sell := 5.0
	d := core.EventDetail{
		Event:        core.Event{ID: 9, Name: "Sommerfest"},
		Responsibles: []core.Responsible{{ID: 1}, {ID: 2}},
		Expenses:     []core.Expense{{Category: core.CategoryBeverages, Quantity: 10, CostPerUnit: 2, SellingPricePerUnit: &sell}},
		Incomes:      []core.StandaloneIncome{{Quantity: 3, PricePerUnit: 4}},
	}
	d.Totals = core.ComputeTotals(d.Expenses, d.Incomes)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	row := NewReportRow(d, "admin", now)
	vals := row.Values()
	if len(vals) != len(Header) {
		t.Fatalf("expected %d columns, got %d", len(Header), len(vals))
	}
	if vals[0] != int64(9) || vals[1] != "admin" || vals[2] != "Sommerfest" || vals[3] != 2 {
		t.Fatalf("unexpected leading columns %v", vals[:4])
	}
	if vals[6] != 20.0 || vals[9] != 42.0 || vals[10] != 22.0 {
		t.Fatalf("unexpected totals %v", vals[6:11])
	}
	if vals[11] != "2024-06-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp %v", vals[11])
	}
}

func TestParseEventID(t *testing.T) {
	cases := []struct {
		in   any
		want int64
		ok   bool
	}{
		{float64(12), 12, true},
		{"12", 12, true},
		{" 7 ", 7, true},
		{"EventID", 0, false},
		{float64(1.5), 0, false},
		{float64(0), 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := ParseEventID(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("%v: expected (%d, %v), got (%d, %v)", c.in, c.want, c.ok, got, ok)
		}
	}
}
