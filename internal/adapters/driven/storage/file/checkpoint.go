// Package file stores the continuation token in a single JSON file on local disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
)

var _ driven.CheckpointStore = (*CheckpointStore)(nil)

// checkpointFile is the on-disk layout.
type checkpointFile struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"savedAt"`
}

// CheckpointStore keeps the token in a JSON file. Saves write a temporary
// sibling, fsync it, rename it over the target and fsync the directory, so
// a crash leaves either the old file or the new one.
type CheckpointStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewCheckpointStore creates a store writing to path.
func NewCheckpointStore(path string) (*CheckpointStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty checkpoint path", domain.ErrInvalidInput)
	}
	return &CheckpointStore{path: path, now: time.Now}, nil
}

// Path returns the checkpoint file path.
func (s *CheckpointStore) Path() string {
	return s.path
}

// Load returns the stored checkpoint, or nil if the file does not exist.
func (s *CheckpointStore) Load(_ context.Context) (*domain.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &domain.PersistenceError{Op: "load", Err: err}
	}

	var cf checkpointFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, &domain.PersistenceError{Op: "load", Err: fmt.Errorf("decoding %s: %w", s.path, err)}
	}
	if cf.Token == "" {
		return nil, nil
	}
	return &domain.Checkpoint{Token: cf.Token, SavedAt: cf.SavedAt}, nil
}

// Save atomically replaces the checkpoint file.
func (s *CheckpointStore) Save(_ context.Context, token string) error {
	if token == "" {
		return &domain.PersistenceError{Op: "save", Err: domain.ErrInvalidInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(checkpointFile{Token: token, SavedAt: s.now().UTC()})
	if err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	if err := writeFileAtomic(s.path, data); err != nil {
		return &domain.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Clear removes the checkpoint file.
func (s *CheckpointStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &domain.PersistenceError{Op: "clear", Err: err}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing checkpoint: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("syncing checkpoint directory: %w", err)
	}
	return nil
}

// syncDir flushes a directory entry so a completed rename survives power loss.
var syncDir = func(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		_ = d.Close()
		return err
	}
	return d.Close()
}
