package backend

import (
	"context"
	"strings"
	"testing"

	"eventledger/internal/config"
	"eventledger/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{ReportBackend: "sqlite"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	cfg, err := FromAppConfig(&config.Config{ReportBackend: "sheets", GoogleSpreadsheetID: "abc", GoogleReportSheetName: "Reports"})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if cfg.Type != SheetsBackend || cfg.GoogleSpreadsheetID != "abc" || cfg.GoogleReportSheetName != "Reports" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestFactory_CreateReportSink(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	sink, err := f.CreateReportSink(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory sink: %v", err)
	}
	if _, ok := sink.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", sink)
	}

	if _, err := f.CreateReportSink(ctx, Config{Type: SheetsBackend}); err == nil || !strings.Contains(err.Error(), "GOOGLE_SPREADSHEET_ID") {
		t.Fatalf("expected missing spreadsheet error, got %v", err)
	}
	if _, err := f.CreateReportSink(ctx, Config{Type: "ftp"}); err == nil {
		t.Fatal("expected unsupported backend error")
	}
}
