package memory

import (
	"context"
	"slices"
	"sync"

	ports "eventledger/internal/sheets"
)

var _ ports.ReportSink = (*Store)(nil)

// Store keeps report rows in memory, for development and tests.
type Store struct {
	mu   sync.Mutex
	rows map[int64]ports.ReportRow
}

func New() *Store {
	return &Store{rows: make(map[int64]ports.ReportRow)}
}

func (s *Store) UpsertReport(_ context.Context, row ports.ReportRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[row.EventID] = row
	return nil
}

func (s *Store) DeleteReport(_ context.Context, eventID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, eventID)
	return nil
}

func (s *Store) ListReportIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.rows))
	for id := range s.rows {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Get returns the row of an event.
func (s *Store) Get(eventID int64) (ports.ReportRow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[eventID]
	return row, ok
}
