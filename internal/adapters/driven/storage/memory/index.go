package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
)

// Ensure SearchIndex implements the interfaces.
var (
	_ driven.SearchIndex = (*SearchIndex)(nil)
	_ driven.Searcher    = (*SearchIndex)(nil)
)

// SearchIndex is an in-memory implementation of driven.SearchIndex.
// Search is a case-insensitive substring match over string attributes.
type SearchIndex struct {
	mu      sync.RWMutex
	records map[string]domain.IndexRecord
}

// NewSearchIndex creates a new in-memory search index.
func NewSearchIndex() *SearchIndex {
	return &SearchIndex{
		records: make(map[string]domain.IndexRecord),
	}
}

// UpsertBatch creates or replaces records.
func (s *SearchIndex) UpsertBatch(_ context.Context, records []domain.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		id := r.ObjectID()
		if id == "" {
			return fmt.Errorf("upsert record without objectID: %w", domain.ErrInvalidInput)
		}
		cp := make(domain.IndexRecord, len(r))
		for k, v := range r {
			cp[k] = v
		}
		s.records[id] = cp
	}
	return nil
}

// DeleteBatch removes records. Unknown ids are ignored.
func (s *SearchIndex) DeleteBatch(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

// Get returns a record by id.
func (s *SearchIndex) Get(id string) (domain.IndexRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	return r, ok
}

// Len returns the number of records.
func (s *SearchIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Search returns records whose string attributes contain the query.
// The score is the number of matching attributes.
func (s *SearchIndex) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []domain.SearchResult{}, nil
	}

	types := make(map[string]struct{}, len(opts.ContentTypes))
	for _, t := range opts.ContentTypes {
		types[t] = struct{}{}
	}

	s.mu.RLock()
	var results []domain.SearchResult
	for _, r := range s.records {
		if len(types) > 0 {
			ct, _ := r[domain.FieldContentType].(string)
			if _, ok := types[ct]; !ok {
				continue
			}
		}
		var score float64
		var highlights []string
		for k, v := range r {
			str, ok := v.(string)
			if !ok || k == domain.FieldObjectID {
				continue
			}
			if strings.Contains(strings.ToLower(str), needle) {
				score++
				highlights = append(highlights, str)
			}
		}
		if score > 0 {
			sort.Strings(highlights)
			results = append(results, domain.SearchResult{Record: r, Score: score, Highlights: highlights})
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.ObjectID() < results[j].Record.ObjectID()
	})

	offset := max(opts.Offset, 0)
	if offset >= len(results) {
		return []domain.SearchResult{}, nil
	}
	results = results[offset:]
	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	return results, nil
}

// Close releases resources.
func (s *SearchIndex) Close() error {
	return nil
}
