package services

import (
	"context"
	"errors"
	"fmt"

	"eventledger/internal/amqp"
	"eventledger/internal/core"
	applog "eventledger/internal/log"
	"eventledger/internal/metrics"
)

// LedgerStore is the owner-scoped persistence the service drives. Inputs
// reach it normalized.
type LedgerStore interface {
	CreateEvent(ctx context.Context, owner core.UserID, name string) (core.Event, error)
	ListEvents(ctx context.Context, owner core.UserID) ([]core.EventSummary, error)
	GetEventDetail(ctx context.Context, owner core.UserID, id int64) (core.EventDetail, error)
	UpdateEvent(ctx context.Context, owner core.UserID, id int64, name string) (core.Event, error)
	DeleteEvent(ctx context.Context, owner core.UserID, id int64) error

	AddResponsible(ctx context.Context, owner core.UserID, eventID int64, name string) (core.Responsible, error)
	UpdateResponsible(ctx context.Context, owner core.UserID, eventID, id int64, name string) (core.Responsible, error)
	DeleteResponsible(ctx context.Context, owner core.UserID, eventID, id int64) error

	AddExpense(ctx context.Context, owner core.UserID, eventID int64, in core.ExpenseInput) (core.Expense, error)
	UpdateExpense(ctx context.Context, owner core.UserID, id int64, in core.ExpenseInput) (core.Expense, error)
	DeleteExpense(ctx context.Context, owner core.UserID, id int64) (int64, error)

	AddIncome(ctx context.Context, owner core.UserID, eventID int64, in core.IncomeInput) (core.StandaloneIncome, error)
	UpdateIncome(ctx context.Context, owner core.UserID, id int64, in core.IncomeInput) (core.StandaloneIncome, error)
	DeleteIncome(ctx context.Context, owner core.UserID, id int64) (int64, error)

	Close() error
}

// ChangePublisher announces committed changes. *amqp.Client implements it.
type ChangePublisher interface {
	PublishLedgerChange(ctx context.Context, eventID, ownerID int64, change amqp.ChangeKind) error
	Close() error
}

// LedgerService validates input, runs the owner-scoped store operation and,
// once it has committed, publishes a change notification. Publishing never
// fails a request.
type LedgerService struct {
	store     LedgerStore
	publisher ChangePublisher
	metrics   *metrics.Metrics
	logger    *applog.Logger
	records   *applog.StructuredLogger
}

// NewLedgerService wires the service. publisher and m may be nil.
func NewLedgerService(store LedgerStore, publisher ChangePublisher, m *metrics.Metrics, logger *applog.Logger) *LedgerService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentLedger)
	return &LedgerService{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		records:   applog.NewStructuredLogger(logger),
	}
}

func (s *LedgerService) CreateEvent(ctx context.Context, owner core.UserID, name string) (core.Event, error) {
	name, err := core.NormalizeName(name)
	if err != nil {
		return core.Event{}, s.reject("create_event", err)
	}
	e, err := s.store.CreateEvent(ctx, owner, name)
	if err != nil {
		return core.Event{}, s.fail(ctx, "create_event", err)
	}
	s.committed(ctx, "create_event", owner, e.ID, amqp.ChangeEventSaved)
	return e, nil
}

func (s *LedgerService) ListEvents(ctx context.Context, owner core.UserID) ([]core.EventSummary, error) {
	events, err := s.store.ListEvents(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// GetEvent returns the event detail. Expenses with a category outside the
// known set are still shown but logged, since the schema should prevent them.
func (s *LedgerService) GetEvent(ctx context.Context, owner core.UserID, id int64) (core.EventDetail, error) {
	d, err := s.store.GetEventDetail(ctx, owner, id)
	if err != nil {
		return core.EventDetail{}, fmt.Errorf("get event: %w", err)
	}
	for _, g := range d.Groups {
		if !g.Category.IsValid() {
			s.logger.WarnContext(ctx, "Event has expenses with unknown category",
				applog.FieldEventID, d.ID,
				applog.FieldCategory, string(g.Category),
				"count", len(g.Expenses))
		}
	}
	return d, nil
}

func (s *LedgerService) UpdateEvent(ctx context.Context, owner core.UserID, id int64, name string) (core.Event, error) {
	name, err := core.NormalizeName(name)
	if err != nil {
		return core.Event{}, s.reject("update_event", err)
	}
	e, err := s.store.UpdateEvent(ctx, owner, id, name)
	if err != nil {
		return core.Event{}, s.fail(ctx, "update_event", err)
	}
	s.committed(ctx, "update_event", owner, id, amqp.ChangeEventSaved)
	return e, nil
}

func (s *LedgerService) DeleteEvent(ctx context.Context, owner core.UserID, id int64) error {
	if err := s.store.DeleteEvent(ctx, owner, id); err != nil {
		return s.fail(ctx, "delete_event", err)
	}
	s.committed(ctx, "delete_event", owner, id, amqp.ChangeEventDeleted)
	return nil
}

func (s *LedgerService) AddResponsible(ctx context.Context, owner core.UserID, eventID int64, name string) (core.Responsible, error) {
	name, err := core.NormalizeName(name)
	if err != nil {
		return core.Responsible{}, s.reject("add_responsible", err)
	}
	r, err := s.store.AddResponsible(ctx, owner, eventID, name)
	if err != nil {
		return core.Responsible{}, s.fail(ctx, "add_responsible", err)
	}
	s.committed(ctx, "add_responsible", owner, eventID, amqp.ChangeEventSaved)
	return r, nil
}

func (s *LedgerService) UpdateResponsible(ctx context.Context, owner core.UserID, eventID, id int64, name string) (core.Responsible, error) {
	name, err := core.NormalizeName(name)
	if err != nil {
		return core.Responsible{}, s.reject("update_responsible", err)
	}
	r, err := s.store.UpdateResponsible(ctx, owner, eventID, id, name)
	if err != nil {
		return core.Responsible{}, s.fail(ctx, "update_responsible", err)
	}
	s.committed(ctx, "update_responsible", owner, eventID, amqp.ChangeEventSaved)
	return r, nil
}

func (s *LedgerService) DeleteResponsible(ctx context.Context, owner core.UserID, eventID, id int64) error {
	if err := s.store.DeleteResponsible(ctx, owner, eventID, id); err != nil {
		return s.fail(ctx, "delete_responsible", err)
	}
	s.committed(ctx, "delete_responsible", owner, eventID, amqp.ChangeEventSaved)
	return nil
}

func (s *LedgerService) AddExpense(ctx context.Context, owner core.UserID, eventID int64, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Normalize(); err != nil {
		return core.Expense{}, s.reject("add_expense", err)
	}
	x, err := s.store.AddExpense(ctx, owner, eventID, in)
	if err != nil {
		return core.Expense{}, s.fail(ctx, "add_expense", err)
	}
	s.committed(ctx, "add_expense", owner, x.EventID, amqp.ChangeEventSaved)
	return x, nil
}

func (s *LedgerService) UpdateExpense(ctx context.Context, owner core.UserID, id int64, in core.ExpenseInput) (core.Expense, error) {
	if err := in.Normalize(); err != nil {
		return core.Expense{}, s.reject("update_expense", err)
	}
	x, err := s.store.UpdateExpense(ctx, owner, id, in)
	if err != nil {
		return core.Expense{}, s.fail(ctx, "update_expense", err)
	}
	s.committed(ctx, "update_expense", owner, x.EventID, amqp.ChangeEventSaved)
	return x, nil
}

func (s *LedgerService) DeleteExpense(ctx context.Context, owner core.UserID, id int64) error {
	eventID, err := s.store.DeleteExpense(ctx, owner, id)
	if err != nil {
		return s.fail(ctx, "delete_expense", err)
	}
	s.committed(ctx, "delete_expense", owner, eventID, amqp.ChangeEventSaved)
	return nil
}

func (s *LedgerService) AddIncome(ctx context.Context, owner core.UserID, eventID int64, in core.IncomeInput) (core.StandaloneIncome, error) {
	if err := in.Normalize(); err != nil {
		return core.StandaloneIncome{}, s.reject("add_income", err)
	}
	i, err := s.store.AddIncome(ctx, owner, eventID, in)
	if err != nil {
		return core.StandaloneIncome{}, s.fail(ctx, "add_income", err)
	}
	s.committed(ctx, "add_income", owner, i.EventID, amqp.ChangeEventSaved)
	return i, nil
}

func (s *LedgerService) UpdateIncome(ctx context.Context, owner core.UserID, id int64, in core.IncomeInput) (core.StandaloneIncome, error) {
	if err := in.Normalize(); err != nil {
		return core.StandaloneIncome{}, s.reject("update_income", err)
	}
	i, err := s.store.UpdateIncome(ctx, owner, id, in)
	if err != nil {
		return core.StandaloneIncome{}, s.fail(ctx, "update_income", err)
	}
	s.committed(ctx, "update_income", owner, i.EventID, amqp.ChangeEventSaved)
	return i, nil
}

func (s *LedgerService) DeleteIncome(ctx context.Context, owner core.UserID, id int64) error {
	eventID, err := s.store.DeleteIncome(ctx, owner, id)
	if err != nil {
		return s.fail(ctx, "delete_income", err)
	}
	s.committed(ctx, "delete_income", owner, eventID, amqp.ChangeEventSaved)
	return nil
}

func (s *LedgerService) reject(op string, err error) error {
	s.metrics.LedgerWrite(op, outcome(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (s *LedgerService) fail(ctx context.Context, op string, err error) error {
	s.metrics.LedgerWrite(op, outcome(err))
	if errors.Is(err, core.ErrStorage) {
		s.records.LogError(ctx, "Ledger write failed", err, applog.ComponentLedger, op,
			applog.NewFields().WithErrorType(applog.ErrorTypeDatabase))
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *LedgerService) committed(ctx context.Context, op string, owner core.UserID, eventID int64, change amqp.ChangeKind) {
	s.metrics.LedgerWrite(op, "ok")
	s.records.LogLedgerWrite(ctx, op, int64(owner), eventID)

	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishLedgerChange(ctx, eventID, int64(owner), change)
	s.metrics.ChangePublished(err)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to publish ledger change",
			applog.FieldEventID, eventID,
			applog.FieldChange, string(change),
			applog.FieldErrorType, applog.ErrorTypeNetwork,
			applog.FieldError, err.Error())
	}
}

// outcome labels an error by class for the write counter.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrValidation):
		return "validation"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	default:
		return "storage"
	}
}

// Close closes the store and the publisher.
func (s *LedgerService) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}
