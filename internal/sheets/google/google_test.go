package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	ports "eventledger/internal/sheets"

	goption "google.golang.org/api/option"
)

// fakeSheet serves the handful of Sheets API calls the client makes against
// one in-memory sheet.
type fakeSheet struct {
	mu      sync.Mutex
	rows    [][]any
	deletes int
}

var rowRange = regexp.MustCompile(`!A(\d+):L\d+$`)

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.Contains(path, "/values/"):
		col := make([][]any, len(f.rows))
		for i, row := range f.rows {
			col[i] = []any{row[0]}
		}
		json.NewEncoder(w).Encode(map[string]any{"range": "Reports!A:A", "values": col})

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":append"):
		var body struct{ Values [][]any }
		json.NewDecoder(r.Body).Decode(&body)
		f.rows = append(f.rows, body.Values...)
		fmt.Fprint(w, `{}`)

	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		m := rowRange.FindStringSubmatch(path)
		if m == nil {
			http.Error(w, `{"error":{"code":400,"message":"bad range"}}`, http.StatusBadRequest)
			return
		}
		n, _ := strconv.Atoi(m[1])
		var body struct{ Values [][]any }
		json.NewDecoder(r.Body).Decode(&body)
		f.rows[n-1] = body.Values[0]
		fmt.Fprint(w, `{}`)

	case r.Method == http.MethodGet:
		fmt.Fprint(w, `{"sheets":[{"properties":{"sheetId":0,"title":"Reports"}}]}`)

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":batchUpdate"):
		var body struct {
			Requests []struct {
				DeleteDimension struct {
					Range struct {
						StartIndex int
						EndIndex   int
					}
				}
			}
		}
		json.NewDecoder(r.Body).Decode(&body)
		rg := body.Requests[0].DeleteDimension.Range
		f.rows = append(f.rows[:rg.StartIndex], f.rows[rg.EndIndex:]...)
		f.deletes++
		fmt.Fprint(w, `{}`)

	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func (f *fakeSheet) snapshot() ([][]any, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]any(nil), f.rows...), f.deletes
}

func newTestClient(t *testing.T) (*Client, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Config{SpreadsheetID: "sheet-1", SheetName: "Reports"},
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c, fake
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClient_UpsertDeleteList(t *testing.T) {
	ctx := context.Background()
	c, fake := newTestClient(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, id := range []int64{4, 7} {
		if err := c.UpsertReport(ctx, ports.ReportRow{EventID: id, Name: "v1", UpdatedAt: now}); err != nil {
			t.Fatalf("upsert %d: %v", id, err)
		}
	}
	rows, _ := fake.snapshot()
	if len(rows) != 3 || rows[0][0] != "EventID" {
		t.Fatalf("expected header plus two rows, got %v", rows)
	}

	if err := c.UpsertReport(ctx, ports.ReportRow{EventID: 4, Name: "v2", UpdatedAt: now}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	rows, _ = fake.snapshot()
	if len(rows) != 3 || rows[1][2] != "v2" {
		t.Fatalf("expected row 2 replaced in place, got %v", rows)
	}

	ids, err := c.ListReportIDs(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 2 || ids[0] != 4 || ids[1] != 7 {
		t.Fatalf("unexpected ids %v", ids)
	}

	if err := c.DeleteReport(ctx, 4); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := c.DeleteReport(ctx, 99); err != nil {
		t.Fatalf("deleting a missing row should succeed, got %v", err)
	}
	rows, deletes := fake.snapshot()
	if deletes != 1 || len(rows) != 2 {
		t.Fatalf("expected one deleted row, got deletes=%d rows=%v", deletes, rows)
	}
}

func TestFindRow(t *testing.T) {
	cells := []any{"EventID", float64(3), nil, "5"}
	if n := findRow(cells, 5); n != 4 {
		t.Fatalf("expected row 4, got %d", n)
	}
	if n := findRow(cells, 8); n != 0 {
		t.Fatalf("expected no row, got %d", n)
	}
}
