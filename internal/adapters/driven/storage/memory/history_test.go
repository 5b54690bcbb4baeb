package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

func recordRuns(t *testing.T, store *RunHistoryStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, store.RecordRun(context.Background(), &domain.RunRecord{ID: fmt.Sprintf("run-%d", i)}))
	}
}

func TestRunHistoryStore_Empty(t *testing.T) {
	store := NewRunHistoryStore()

	last, err := store.LastRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunHistoryStore_RecordAndList(t *testing.T) {
	store := NewRunHistoryStore()
	recordRuns(t, store, 3)

	last, err := store.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "run-2", last.ID)

	runs, err := store.ListRuns(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)

	all, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRunHistoryStore_RecordInvalid(t *testing.T) {
	store := NewRunHistoryStore()

	assert.ErrorIs(t, store.RecordRun(context.Background(), nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, store.RecordRun(context.Background(), &domain.RunRecord{}), domain.ErrInvalidInput)
}

func TestRunHistoryStore_Prune(t *testing.T) {
	store := NewRunHistoryStore()
	recordRuns(t, store, 5)

	removed, err := store.PruneRuns(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-4", runs[0].ID)
	assert.Equal(t, "run-3", runs[1].ID)

	removed, err = store.PruneRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	_, err = store.PruneRuns(context.Background(), -1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
