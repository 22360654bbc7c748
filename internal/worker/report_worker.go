package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eventledger/internal/amqp"
	"eventledger/internal/core"
	"eventledger/internal/metrics"
	"eventledger/internal/sheets"
)

// ReportSource is the read side of the ledger the worker exports from.
type ReportSource interface {
	GetEventDetail(ctx context.Context, owner core.UserID, id int64) (core.EventDetail, error)
	GetUserByID(ctx context.Context, id core.UserID) (core.User, error)
	ListEventRefs(ctx context.Context) ([]core.EventRef, error)
}

// ReportWorker keeps the report sink in step with the ledger.
type ReportWorker struct {
	source  ReportSource
	sink    sheets.ReportSink
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewReportWorker(source ReportSource, sink sheets.ReportSink, m *metrics.Metrics) *ReportWorker {
	return &ReportWorker{source: source, sink: sink, metrics: m, now: time.Now}
}

// HandleChange applies one change notification. Returning an error makes the
// consumer requeue the message.
func (w *ReportWorker) HandleChange(ctx context.Context, msg *amqp.LedgerChangeMessage) error {
	slog.InfoContext(ctx, "Processing ledger change",
		"component", "worker",
		"event_id", msg.EventID,
		"change", msg.Change)

	switch msg.Change {
	case amqp.ChangeEventDeleted:
		return w.remove(ctx, msg.EventID)
	case amqp.ChangeEventSaved:
		return w.export(ctx, core.EventRef{Owner: core.UserID(msg.OwnerID), EventID: msg.EventID})
	default:
		return fmt.Errorf("unknown change %q", msg.Change)
	}
}

// export upserts the row of one event. An event that is gone by now (deleted
// after the message was sent) has its row removed instead.
func (w *ReportWorker) export(ctx context.Context, ref core.EventRef) error {
	detail, err := w.source.GetEventDetail(ctx, ref.Owner, ref.EventID)
	if errors.Is(err, core.ErrNotFound) {
		return w.remove(ctx, ref.EventID)
	}
	if err != nil {
		return fmt.Errorf("load event %d: %w", ref.EventID, err)
	}

	owner := ""
	if u, err := w.source.GetUserByID(ctx, ref.Owner); err == nil {
		owner = u.Username
	} else {
		slog.WarnContext(ctx, "Failed to load event owner", "component", "worker", "event_id", ref.EventID, "error", err)
	}

	err = w.sink.UpsertReport(ctx, sheets.NewReportRow(detail, owner, w.now()))
	w.metrics.ReportExported("upsert", err)
	if err != nil {
		return fmt.Errorf("export event %d: %w", ref.EventID, err)
	}
	slog.InfoContext(ctx, "Exported event report",
		"component", "worker",
		"event_id", ref.EventID,
		"profit_loss", detail.Totals.ProfitLoss)
	return nil
}

func (w *ReportWorker) remove(ctx context.Context, eventID int64) error {
	err := w.sink.DeleteReport(ctx, eventID)
	w.metrics.ReportExported("delete", err)
	if err != nil {
		return fmt.Errorf("delete report of event %d: %w", eventID, err)
	}
	slog.InfoContext(ctx, "Removed event report", "component", "worker", "event_id", eventID)
	return nil
}

// Reconcile re-exports every event and prunes rows of events that no longer
// exist. It covers messages lost while the broker or the worker was down.
func (w *ReportWorker) Reconcile(ctx context.Context) error {
	refs, err := w.source.ListEventRefs(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	live := make(map[int64]struct{}, len(refs))
	exported, failed := 0, 0
	for _, ref := range refs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		live[ref.EventID] = struct{}{}
		if err := w.export(ctx, ref); err != nil {
			slog.ErrorContext(ctx, "Failed to export event during reconciliation",
				"component", "worker", "event_id", ref.EventID, "error", err)
			failed++
			continue
		}
		exported++
	}

	ids, err := w.sink.ListReportIDs(ctx)
	if err != nil {
		return fmt.Errorf("list report rows: %w", err)
	}
	pruned := 0
	for _, id := range ids {
		if _, ok := live[id]; ok {
			continue
		}
		if err := w.remove(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to prune report row",
				"component", "worker", "event_id", id, "error", err)
			failed++
			continue
		}
		pruned++
	}

	slog.InfoContext(ctx, "Reconciliation completed",
		"component", "worker",
		"events", len(refs),
		"exported", exported,
		"pruned", pruned,
		"errors", failed)

	if failed > 0 {
		return fmt.Errorf("reconciliation finished with %d errors", failed)
	}
	return nil
}
