package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
)

// Ensure RunHistoryStore implements the interface.
var _ driven.RunHistoryStore = (*RunHistoryStore)(nil)

// RunHistoryStore is an in-memory implementation of driven.RunHistoryStore.
// Runs are kept in insertion order.
type RunHistoryStore struct {
	mu   sync.RWMutex
	runs []domain.RunRecord
}

// NewRunHistoryStore creates a new in-memory run history store.
func NewRunHistoryStore() *RunHistoryStore {
	return &RunHistoryStore{}
}

// RecordRun appends a finished run.
func (s *RunHistoryStore) RecordRun(_ context.Context, run *domain.RunRecord) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	return nil
}

// LastRun returns the most recent run, or nil if none was recorded.
func (s *RunHistoryStore) LastRun(_ context.Context) (*domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.runs) == 0 {
		return nil, nil
	}
	last := s.runs[len(s.runs)-1]
	return &last, nil
}

// ListRuns returns up to limit runs, most recent first.
func (s *RunHistoryStore) ListRuns(_ context.Context, limit int) ([]domain.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.runs) {
		limit = len(s.runs)
	}
	out := make([]domain.RunRecord, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.runs[i])
	}
	return out, nil
}

// PruneRuns drops all but the most recent keep runs.
func (s *RunHistoryStore) PruneRuns(_ context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runs) <= keep {
		return 0, nil
	}
	removed := len(s.runs) - keep
	s.runs = append([]domain.RunRecord(nil), s.runs[removed:]...)
	return removed, nil
}
