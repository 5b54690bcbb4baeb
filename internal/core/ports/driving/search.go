package driving

import (
	"context"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search performs a keyword search across the indexed records.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}
