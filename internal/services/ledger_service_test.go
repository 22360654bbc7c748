package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"eventledger/internal/amqp"
	"eventledger/internal/core"
	"eventledger/internal/metrics"
	"eventledger/internal/storage"
)

type published struct {
	eventID, ownerID int64
	change           amqp.ChangeKind
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
	closeErr error
}

func (f *fakePublisher) PublishLedgerChange(_ context.Context, eventID, ownerID int64, change amqp.ChangeKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, published{eventID, ownerID, change})
	return nil
}

func (f *fakePublisher) Close() error { return f.closeErr }

func (f *fakePublisher) sent() []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]published(nil), f.messages...)
}

func newTestService(t *testing.T) (*LedgerService, *storage.SQLiteRepository, *fakePublisher, *metrics.Metrics) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	pub := &fakePublisher{}
	m := metrics.New()
	return NewLedgerService(repo, pub, m, nil), repo, pub, m
}

func mustUser(t *testing.T, repo *storage.SQLiteRepository, name string) core.UserID {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), name, "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func ptr(f float64) *float64 { return &f }

func TestLedgerService_PublishesAfterWrites(t *testing.T) {
	svc, repo, pub, _ := newTestService(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "alice")

	ev, err := svc.CreateEvent(ctx, owner, "  Sommerfest ")
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if ev.Name != "Sommerfest" {
		t.Fatalf("expected trimmed name, got %q", ev.Name)
	}
	x, err := svc.AddExpense(ctx, owner, ev.ID, core.ExpenseInput{
		Category: core.CategoryBeverages, Name: "Bier", Quantity: 10, CostPerUnit: 2, SellingPricePerUnit: ptr(5),
	})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if _, err := svc.AddIncome(ctx, owner, ev.ID, core.IncomeInput{Name: "Eintritt", Quantity: 3, PricePerUnit: 4}); err != nil {
		t.Fatalf("add income: %v", err)
	}
	if err := svc.DeleteExpense(ctx, owner, x.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	if err := svc.DeleteEvent(ctx, owner, ev.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	want := []amqp.ChangeKind{amqp.ChangeEventSaved, amqp.ChangeEventSaved, amqp.ChangeEventSaved, amqp.ChangeEventSaved, amqp.ChangeEventDeleted}
	got := pub.sent()
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %+v", len(want), got)
	}
	for i, m := range got {
		if m.change != want[i] || m.eventID != ev.ID || m.ownerID != int64(owner) {
			t.Fatalf("message %d: unexpected %+v", i, m)
		}
	}
}

func TestLedgerService_RejectedWritesDoNotPublish(t *testing.T) {
	svc, repo, pub, m := newTestService(t)
	ctx := context.Background()
	owner := mustUser(t, repo, "alice")
	other := mustUser(t, repo, "bob")

	if _, err := svc.CreateEvent(ctx, owner, "   "); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	events, err := svc.ListEvents(ctx, owner)
	if err != nil || len(events) != 0 {
		t.Fatalf("rejected create must not write, got %v %v", events, err)
	}

	ev, err := svc.CreateEvent(ctx, owner, "Fest")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before := len(pub.sent())

	bad := core.ExpenseInput{Category: "Invalid", Name: "x", Quantity: 1, CostPerUnit: 1}
	if _, err := svc.AddExpense(ctx, owner, ev.ID, bad); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := svc.AddIncome(ctx, owner, ev.ID, core.IncomeInput{Name: "x", Quantity: 1, PricePerUnit: 0}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.DeleteEvent(ctx, other, ev.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
	if _, err := svc.AddResponsible(ctx, other, ev.ID, "Max"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}

	if n := len(pub.sent()); n != before {
		t.Fatalf("rejected writes must not publish, got %d new messages", n-before)
	}

	expected := `
# HELP eventledger_ledger_writes_total Ledger mutations by operation and outcome.
# TYPE eventledger_ledger_writes_total counter
eventledger_ledger_writes_total{operation="add_expense",outcome="validation"} 1
eventledger_ledger_writes_total{operation="add_income",outcome="validation"} 1
eventledger_ledger_writes_total{operation="add_responsible",outcome="not_found"} 1
eventledger_ledger_writes_total{operation="create_event",outcome="ok"} 1
eventledger_ledger_writes_total{operation="create_event",outcome="validation"} 1
eventledger_ledger_writes_total{operation="delete_event",outcome="not_found"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "eventledger_ledger_writes_total"); err != nil {
		t.Fatalf("unexpected write counters: %v", err)
	}
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	svc, repo, pub, _ := newTestService(t)
	pub.err = errors.New("circuit breaker is open")
	ctx := context.Background()
	owner := mustUser(t, repo, "alice")

	ev, err := svc.CreateEvent(ctx, owner, "Fest")
	if err != nil {
		t.Fatalf("write must succeed when publishing fails, got %v", err)
	}
	if _, err := svc.GetEvent(ctx, owner, ev.ID); err != nil {
		t.Fatalf("event must be persisted, got %v", err)
	}
}

func TestLedgerService_NilPublisher(t *testing.T) {
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	svc := NewLedgerService(repo, nil, nil, nil)
	defer svc.Close()

	owner := mustUser(t, repo, "alice")
	ev, err := svc.CreateEvent(context.Background(), owner, "Fest")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	r, err := svc.AddResponsible(context.Background(), owner, ev.ID, "Max")
	if err != nil {
		t.Fatalf("add responsible: %v", err)
	}
	if _, err := svc.UpdateResponsible(context.Background(), owner, ev.ID, r.ID, "Moritz"); err != nil {
		t.Fatalf("update responsible: %v", err)
	}
}

type closeErrStore struct{ LedgerStore }

func (closeErrStore) Close() error { return errors.New("db busy") }

func TestLedgerService_Close(t *testing.T) {
	svc := NewLedgerService(closeErrStore{}, &fakePublisher{closeErr: errors.New("amqp gone")}, nil, nil)
	err := svc.Close()
	if err == nil {
		t.Fatal("expected aggregated close error")
	}
	for _, s := range []string{"storage: db busy", "amqp: amqp gone"} {
		if !strings.Contains(err.Error(), s) {
			t.Fatalf("expected %q in %q", s, err.Error())
		}
	}

	if err := (&LedgerService{}).Close(); err != nil {
		t.Fatalf("closing an empty service should succeed, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":         nil,
		"validation": core.ErrEmptyName,
		"not_found":  core.Storage("get", core.ErrNotFound),
		"storage":    core.Storage("get", errors.New("io")),
	}
	for want, err := range cases {
		if got := outcome(err); got != want {
			t.Fatalf("%v: expected %s, got %s", err, want, got)
		}
	}
}
