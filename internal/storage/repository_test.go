package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"eventledger/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	// Deterministic, strictly increasing clock.
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func mustUser(t *testing.T, repo *SQLiteRepository, name string) core.UserID {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), name, "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u.ID
}

func ptr(f float64) *float64 { return &f }

func TestMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		repo, err := NewSQLiteRepository(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		repo.Close()
	}
	version, dirty, err := SchemaVersion(DSN(path))
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != 2 || dirty {
		t.Fatalf("expected clean version 2, got %d dirty=%v", version, dirty)
	}
}

func TestCreateUser_Duplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustUser(t, repo, "admin")
	if _, err := repo.CreateUser(ctx, "admin", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	n, err := repo.CountUsers(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 user, got %d (%v)", n, err)
	}
	if _, err := repo.GetUserByUsername(ctx, "nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	uid := mustUser(t, repo, "admin")

	now := time.Now().UTC()
	live := core.Session{ID: "live", UserID: uid, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	old := core.Session{ID: "old", UserID: uid, CreatedAt: now.Add(-48 * time.Hour), ExpiresAt: now.Add(-24 * time.Hour)}
	for _, s := range []core.Session{live, old} {
		if err := repo.CreateSession(ctx, s); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	got, err := repo.GetSession(ctx, "live")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.UserID != uid || !got.ExpiresAt.Equal(live.ExpiresAt.Truncate(time.Microsecond)) {
		t.Fatalf("unexpected session %+v", got)
	}

	repo.now = time.Now
	n, err := repo.DeleteExpiredSessions(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one expired session purged, got %d (%v)", n, err)
	}
	if _, err := repo.GetSession(ctx, "old"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expired session should be gone, got %v", err)
	}

	if err := repo.DeleteSession(ctx, "live"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := repo.GetSession(ctx, "live"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("deleted session should be gone, got %v", err)
	}
}

func TestEventDetail_ExampleTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "admin")

	ev, err := repo.CreateEvent(ctx, owner, "Sommerfest")
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := repo.AddExpense(ctx, owner, ev.ID, core.ExpenseInput{
		Category: core.CategoryBeverages, Name: "Bier", Quantity: 10, CostPerUnit: 2, SellingPricePerUnit: ptr(5),
	}); err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if _, err := repo.AddIncome(ctx, owner, ev.ID, core.IncomeInput{Name: "Eintritt", Quantity: 3, PricePerUnit: 4}); err != nil {
		t.Fatalf("add income: %v", err)
	}

	d, err := repo.GetEventDetail(ctx, owner, ev.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	want := core.Totals{TotalExpenses: 20, IncomeFromExpenses: 30, IncomeWithoutExpenses: 12, TotalIncome: 42, ProfitLoss: 22}
	if d.Totals != want {
		t.Fatalf("expected %+v, got %+v", want, d.Totals)
	}
	if len(d.Groups) != 1 || d.Groups[0].Category != core.CategoryBeverages {
		t.Fatalf("unexpected groups %+v", d.Groups)
	}
	if len(d.IncomeEligible) != 1 || d.IncomeEligible[0].Profit != 30 {
		t.Fatalf("unexpected income eligible expenses %+v", d.IncomeEligible)
	}
	if d.Responsibles == nil || len(d.Responsibles) != 0 {
		t.Fatalf("responsibles should be an empty list, got %#v", d.Responsibles)
	}
}

func TestEventDetail_InsertionOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "admin")
	ev, _ := repo.CreateEvent(ctx, owner, "Fest")

	names := []string{"Anna", "Ben", "Clara"}
	for _, n := range names {
		if _, err := repo.AddResponsible(ctx, owner, ev.ID, n); err != nil {
			t.Fatalf("add responsible: %v", err)
		}
	}
	d, err := repo.GetEventDetail(ctx, owner, ev.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	for i, n := range names {
		if d.Responsibles[i].Name != n {
			t.Fatalf("position %d: expected %s, got %s", i, n, d.Responsibles[i].Name)
		}
	}
}

func TestSellingPrice_AbsentVersusZero(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "admin")
	ev, _ := repo.CreateEvent(ctx, owner, "Fest")

	absent, err := repo.AddExpense(ctx, owner, ev.ID, core.ExpenseInput{
		Category: core.CategoryExpenseWithoutIncome, Name: "Deko", Quantity: 1, CostPerUnit: 5,
	})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if absent.SellingPricePerUnit != nil {
		t.Fatalf("expected absent selling price, got %v", *absent.SellingPricePerUnit)
	}

	zero, err := repo.AddExpense(ctx, owner, ev.ID, core.ExpenseInput{
		Category: core.CategoryFood, Name: "Kuchen", Quantity: 2, CostPerUnit: 3, SellingPricePerUnit: ptr(0),
	})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if zero.SellingPricePerUnit == nil || *zero.SellingPricePerUnit != 0 {
		t.Fatalf("expected present zero selling price")
	}

	// Clearing the price on update stores NULL again.
	updated, err := repo.UpdateExpense(ctx, owner, zero.ID, core.ExpenseInput{
		Category: core.CategoryFood, Name: "Kuchen", Quantity: 2, CostPerUnit: 3,
	})
	if err != nil {
		t.Fatalf("update expense: %v", err)
	}
	if updated.SellingPricePerUnit != nil {
		t.Fatalf("expected cleared selling price")
	}
}

func TestListEvents_OrderCountsTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "admin")
	other := mustUser(t, repo, "guest")

	first, _ := repo.CreateEvent(ctx, owner, "Erstes")
	second, _ := repo.CreateEvent(ctx, owner, "Zweites")
	if _, err := repo.CreateEvent(ctx, other, "Fremd"); err != nil {
		t.Fatalf("create event: %v", err)
	}
	repo.AddResponsible(ctx, owner, first.ID, "Anna")
	repo.AddExpense(ctx, owner, first.ID, core.ExpenseInput{Category: core.CategoryOther, Name: "Zelt", Quantity: 1, CostPerUnit: 100})
	repo.AddIncome(ctx, owner, second.ID, core.IncomeInput{Name: "Spende", Quantity: 1, PricePerUnit: 50})

	list, err := repo.ListEvents(ctx, owner)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 events, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest first, got %d then %d", list[0].ID, list[1].ID)
	}
	if list[1].ResponsibleCount != 1 || list[1].ExpenseCount != 1 || list[1].IncomeCount != 0 {
		t.Fatalf("unexpected counts %+v", list[1])
	}
	if list[1].ProfitLoss != -100 || list[0].ProfitLoss != 50 {
		t.Fatalf("unexpected totals %+v / %+v", list[0].Totals, list[1].Totals)
	}

	empty, err := repo.ListEvents(ctx, mustUser(t, repo, "new"))
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v (%v)", empty, err)
	}
}

func TestOwnerScoping(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "admin")
	intruder := mustUser(t, repo, "intruder")

	ev, _ := repo.CreateEvent(ctx, owner, "Privat")
	resp, _ := repo.AddResponsible(ctx, owner, ev.ID, "Anna")
	exp, _ := repo.AddExpense(ctx, owner, ev.ID, core.ExpenseInput{Category: core.CategoryFood, Name: "Brot", Quantity: 1, CostPerUnit: 1})
	inc, _ := repo.AddIncome(ctx, owner, ev.ID, core.IncomeInput{Name: "Los", Quantity: 1, PricePerUnit: 1})

	ops := map[string]func() error{
		"get event":          func() error { _, err := repo.GetEventDetail(ctx, intruder, ev.ID); return err },
		"update event":       func() error { _, err := repo.UpdateEvent(ctx, intruder, ev.ID, "x"); return err },
		"delete event":       func() error { return repo.DeleteEvent(ctx, intruder, ev.ID) },
		"add responsible":    func() error { _, err := repo.AddResponsible(ctx, intruder, ev.ID, "x"); return err },
		"update responsible": func() error { _, err := repo.UpdateResponsible(ctx, intruder, ev.ID, resp.ID, "x"); return err },
		"delete responsible": func() error { return repo.DeleteResponsible(ctx, intruder, ev.ID, resp.ID) },
		"add expense": func() error {
			_, err := repo.AddExpense(ctx, intruder, ev.ID, core.ExpenseInput{Category: core.CategoryFood, Name: "x", Quantity: 1})
			return err
		},
		"update expense": func() error {
			_, err := repo.UpdateExpense(ctx, intruder, exp.ID, core.ExpenseInput{Category: core.CategoryFood, Name: "x", Quantity: 1})
			return err
		},
		"delete expense": func() error { _, err := repo.DeleteExpense(ctx, intruder, exp.ID); return err },
		"add income": func() error {
			_, err := repo.AddIncome(ctx, intruder, ev.ID, core.IncomeInput{Name: "x", Quantity: 1, PricePerUnit: 1})
			return err
		},
		"update income": func() error {
			_, err := repo.UpdateIncome(ctx, intruder, inc.ID, core.IncomeInput{Name: "x", Quantity: 1, PricePerUnit: 1})
			return err
		},
		"delete income": func() error { _, err := repo.DeleteIncome(ctx, intruder, inc.ID); return err },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("%s: expected not found, got %v", name, err)
		}
	}

	// The owner's data is untouched.
	d, err := repo.GetEventDetail(ctx, owner, ev.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if d.Name != "Privat" || len(d.Responsibles) != 1 || len(d.Expenses) != 1 || len(d.Incomes) != 1 {
		t.Fatalf("owner data changed: %+v", d)
	}

	// A responsible addressed through the wrong event is also missing.
	other, _ := repo.CreateEvent(ctx, owner, "Anderes")
	if err := repo.DeleteResponsible(ctx, owner, other.ID, resp.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for mismatched event, got %v", err)
	}
}

func TestDeleteEvent_Cascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "admin")
	ev, _ := repo.CreateEvent(ctx, owner, "Fest")
	repo.AddResponsible(ctx, owner, ev.ID, "Anna")
	repo.AddExpense(ctx, owner, ev.ID, core.ExpenseInput{Category: core.CategoryFood, Name: "Brot", Quantity: 1, CostPerUnit: 1})
	repo.AddIncome(ctx, owner, ev.ID, core.IncomeInput{Name: "Los", Quantity: 1, PricePerUnit: 1})

	if err := repo.DeleteEvent(ctx, owner, ev.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	if _, err := repo.GetEventDetail(ctx, owner, ev.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if n := countChildren(t, repo, ev.ID); n != 0 {
		t.Fatalf("expected no orphans, got %d", n)
	}
	if err := repo.DeleteEvent(ctx, owner, ev.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestDeleteEvent_RollsBackOnFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "admin")
	ev, _ := repo.CreateEvent(ctx, owner, "Fest")
	repo.AddResponsible(ctx, owner, ev.ID, "Anna")
	repo.AddExpense(ctx, owner, ev.ID, core.ExpenseInput{Category: core.CategoryFood, Name: "Brot", Quantity: 1, CostPerUnit: 1})
	repo.AddIncome(ctx, owner, ev.ID, core.IncomeInput{Name: "Los", Quantity: 1, PricePerUnit: 1})

	// Fail the final step, after the children were already deleted.
	if _, err := repo.db.Exec(`CREATE TRIGGER fail_event_delete BEFORE DELETE ON events
		BEGIN SELECT RAISE(ABORT, 'simulated failure'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	err := repo.DeleteEvent(ctx, owner, ev.ID)
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	if n := countChildren(t, repo, ev.ID); n != 3 {
		t.Fatalf("expected all 3 children to survive the rollback, got %d", n)
	}
	if _, err := repo.GetEventDetail(ctx, owner, ev.ID); err != nil {
		t.Fatalf("event should still exist: %v", err)
	}
}

func TestSchemaRejectsUnknownCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "admin")
	ev, _ := repo.CreateEvent(ctx, owner, "Fest")

	_, err := repo.AddExpense(ctx, owner, ev.ID, core.ExpenseInput{Category: "Legacy", Name: "x", Quantity: 1, CostPerUnit: 1})
	if !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected storage failure from CHECK constraint, got %v", err)
	}
}

func TestListEventRefs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := mustUser(t, repo, "a")
	b := mustUser(t, repo, "b")
	e1, _ := repo.CreateEvent(ctx, a, "A")
	e2, _ := repo.CreateEvent(ctx, b, "B")

	refs, err := repo.ListEventRefs(ctx)
	if err != nil {
		t.Fatalf("list refs: %v", err)
	}
	want := []core.EventRef{{Owner: a, EventID: e1.ID}, {Owner: b, EventID: e2.ID}}
	if len(refs) != len(want) || refs[0] != want[0] || refs[1] != want[1] {
		t.Fatalf("expected %+v, got %+v", want, refs)
	}
}

func countChildren(t *testing.T, repo *SQLiteRepository, eventID int64) int {
	t.Helper()
	var n int
	err := repo.db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM event_responsibles WHERE event_id = ?) +
		(SELECT COUNT(*) FROM expenses WHERE event_id = ?) +
		(SELECT COUNT(*) FROM income_without_expense WHERE event_id = ?)`,
		eventID, eventID, eventID).Scan(&n)
	if err != nil {
		t.Fatalf("count children: %v", err)
	}
	return n
}
