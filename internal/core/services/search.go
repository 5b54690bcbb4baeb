package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
	"github.com/custodia-labs/indexsync/internal/core/ports/driving"
	"github.com/custodia-labs/indexsync/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// defaultSearchLimit applies when the caller does not set one.
const defaultSearchLimit = 20

// SearchService queries the index that the sync keeps up to date.
type SearchService struct {
	searcher driven.Searcher
}

// NewSearchService creates a new search service.
// searcher may be nil when the configured index cannot answer queries locally.
func NewSearchService(searcher driven.Searcher) *SearchService {
	return &SearchService{searcher: searcher}
}

// Search performs a keyword search across the indexed records.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}
	if s.searcher == nil {
		return nil, fmt.Errorf("search: %w", domain.ErrUnsupportedType)
	}

	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	logger.Debug("Limit: %d, Offset: %d, Content types: %v", opts.Limit, opts.Offset, opts.ContentTypes)

	results, err := s.searcher.Search(ctx, query, opts)
	if err != nil {
		logger.Warn("Search failed: %v", err)
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Debug("Final results: %d", len(results))
	return results, nil
}
