package sheets

import "context"

// Ports for the report sinks the worker exports to.
type (
	ReportWriter interface {
		// UpsertReport replaces the row of row.EventID, or appends one.
		UpsertReport(ctx context.Context, row ReportRow) error
	}

	ReportDeleter interface {
		// DeleteReport removes the row of an event. A missing row is not an error.
		DeleteReport(ctx context.Context, eventID int64) error
	}

	// ReportLister returns the event ids that currently have a row.
	ReportLister interface {
		ListReportIDs(ctx context.Context) ([]int64, error)
	}

	ReportSink interface {
		ReportWriter
		ReportDeleter
		ReportLister
	}
)
