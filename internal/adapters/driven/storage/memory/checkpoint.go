package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
)

// Ensure CheckpointStore implements the interface.
var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// CheckpointStore is an in-memory implementation of driven.CheckpointStore.
// Tokens do not survive a restart, so every process starts with an initial sync.
type CheckpointStore struct {
	mu         sync.RWMutex
	checkpoint *domain.Checkpoint
	now        func() time.Time
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{now: time.Now}
}

// Load returns the stored checkpoint, or nil if none was saved.
func (s *CheckpointStore) Load(_ context.Context) (*domain.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.checkpoint == nil {
		return nil, nil
	}
	cp := *s.checkpoint
	return &cp, nil
}

// Save replaces the stored token.
func (s *CheckpointStore) Save(_ context.Context, token string) error {
	if token == "" {
		return &domain.PersistenceError{Op: "save", Err: domain.ErrInvalidInput}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = &domain.Checkpoint{Token: token, SavedAt: s.now()}
	return nil
}

// Clear removes the stored token.
func (s *CheckpointStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = nil
	return nil
}
