package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
)

var (
	_ driven.SearchIndex = (*SearchIndex)(nil)
	_ driven.Searcher    = (*SearchIndex)(nil)
)

// SearchIndex is a local full-text index over the records table.
// Each record's searchable text lives in records_fts under the same rowid.
type SearchIndex struct {
	store *Store
}

// UpsertBatch writes records in one transaction.
func (s *SearchIndex) UpsertBatch(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now())
	for _, r := range records {
		id := r.ObjectID()
		if id == "" {
			return fmt.Errorf("upsert record without objectID: %w", domain.ErrInvalidInput)
		}
		body, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", id, err)
		}
		contentType, _ := r[domain.FieldContentType].(string)

		var rowid int64
		err = tx.QueryRowContext(ctx, `
			INSERT INTO records (object_id, content_type, body, indexed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(object_id) DO UPDATE SET
				content_type = excluded.content_type,
				body = excluded.body,
				indexed_at = excluded.indexed_at
			RETURNING rowid
		`, id, contentType, string(body), now).Scan(&rowid)
		if err != nil {
			return fmt.Errorf("writing record %s: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM records_fts WHERE rowid = ?", rowid); err != nil {
			return fmt.Errorf("clearing text for %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO records_fts (rowid, text) VALUES (?, ?)", rowid, searchableText(r)); err != nil {
			return fmt.Errorf("indexing text for %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing upsert: %w", err)
	}
	return nil
}

// DeleteBatch removes records. Unknown ids are ignored.
func (s *SearchIndex) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM records_fts WHERE rowid IN (SELECT rowid FROM records WHERE object_id = ?)", id); err != nil {
			return fmt.Errorf("deleting text for %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE object_id = ?", id); err != nil {
			return fmt.Errorf("deleting record %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// Get returns a record by objectID, or nil if absent.
func (s *SearchIndex) Get(ctx context.Context, id string) (domain.IndexRecord, error) {
	var body string
	err := s.store.db.QueryRowContext(ctx, "SELECT body FROM records WHERE object_id = ?", id).Scan(&body)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading record %s: %w", id, err)
	}
	return decodeRecord(body)
}

// Count returns the number of indexed records.
func (s *SearchIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Search runs a bm25-ranked full-text query. Every whitespace-separated
// term must match.
func (s *SearchIndex) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	match := matchExpression(query)
	if match == "" {
		return nil, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	offset := max(opts.Offset, 0)

	sqlText := `
		SELECT r.body, bm25(records_fts), snippet(records_fts, 0, '[', ']', '...', 12)
		FROM records_fts
		JOIN records r ON r.rowid = records_fts.rowid
		WHERE records_fts MATCH ?`
	args := []any{match}
	if len(opts.ContentTypes) > 0 {
		sqlText += " AND r.content_type IN (?" + strings.Repeat(", ?", len(opts.ContentTypes)-1) + ")"
		for _, ct := range opts.ContentTypes {
			args = append(args, ct)
		}
	}
	sqlText += " ORDER BY bm25(records_fts), r.object_id LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.store.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("searching records: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		var body, snippet string
		var rank float64
		if err := rows.Scan(&body, &rank, &snippet); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		record, err := decodeRecord(body)
		if err != nil {
			return nil, err
		}
		result := domain.SearchResult{Record: record, Score: -rank}
		if snippet != "" {
			result.Highlights = []string{snippet}
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	return results, nil
}

// Close is a no-op; the owning Store holds the connection.
func (s *SearchIndex) Close() error {
	return nil
}

func decodeRecord(body string) (domain.IndexRecord, error) {
	var record domain.IndexRecord
	if err := json.Unmarshal([]byte(body), &record); err != nil {
		return nil, fmt.Errorf("decoding record: %w", err)
	}
	return record, nil
}

// matchExpression quotes each term so FTS5 operators in user input are
// treated as literal text.
func matchExpression(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

// reservedFields are record attributes that carry metadata, not content.
var reservedFields = map[string]bool{
	domain.FieldObjectID:    true,
	domain.FieldCreatedAt:   true,
	domain.FieldUpdatedAt:   true,
	domain.FieldType:        true,
	domain.FieldContentType: true,
}

// searchableText joins every string found in the record's content
// attributes, visiting keys in sorted order.
func searchableText(r domain.IndexRecord) string {
	keys := make([]string, 0, len(r))
	for k := range r {
		if !reservedFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = collectStrings(r[k], parts)
	}
	return strings.Join(parts, "\n")
}

func collectStrings(v any, out []string) []string {
	switch val := v.(type) {
	case string:
		if val != "" {
			out = append(out, val)
		}
	case []string:
		for _, s := range val {
			out = collectStrings(s, out)
		}
	case []any:
		for _, item := range val {
			out = collectStrings(item, out)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = collectStrings(val[k], out)
		}
	}
	return out
}
