package driven

import (
	"context"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

// SearchIndex is the external index kept in step with the content store.
// Both operations must be idempotent: writing the same record twice, or
// deleting an id that is not present, succeeds and leaves the same state.
type SearchIndex interface {
	// UpsertBatch creates or replaces records keyed by objectID.
	UpsertBatch(ctx context.Context, records []domain.IndexRecord) error

	// DeleteBatch removes records by objectID.
	DeleteBatch(ctx context.Context, ids []string) error

	// Close releases resources.
	Close() error
}

// Searcher queries an index. Optional: not every index backend
// supports local queries.
type Searcher interface {
	// Search performs a keyword search and returns matching records with scores.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
