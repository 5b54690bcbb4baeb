// Package algolia keeps an Algolia index in step with the content store.
package algolia

import (
	"context"
	"fmt"
	"strings"

	"github.com/algolia/algoliasearch-client-go/v3/algolia/opt"
	"github.com/algolia/algoliasearch-client-go/v3/algolia/search"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
	"github.com/custodia-labs/indexsync/internal/logger"
)

var (
	_ driven.SearchIndex = (*Index)(nil)
	_ driven.Searcher    = (*Index)(nil)
)

// Config holds Algolia credentials and behaviour.
type Config struct {
	AppID     string
	APIKey    string
	IndexName string

	// WaitForTask blocks each batch until Algolia has applied it.
	WaitForTask bool
}

// objectIndex is the part of the Algolia index API the adapter drives.
type objectIndex interface {
	saveObjects(ctx context.Context, records []domain.IndexRecord, wait bool) error
	deleteObjects(ctx context.Context, ids []string, wait bool) error
	search(ctx context.Context, query string, opts domain.SearchOptions) ([]map[string]interface{}, error)
}

// Index writes records to one Algolia index.
type Index struct {
	index objectIndex
	name  string
	wait  bool
}

// New creates an Index from credentials.
func New(cfg Config) (*Index, error) {
	if cfg.AppID == "" || cfg.APIKey == "" || cfg.IndexName == "" {
		return nil, fmt.Errorf("%w: algolia needs app_id, api_key and index_name", domain.ErrInvalidInput)
	}
	client := search.NewClient(cfg.AppID, cfg.APIKey)
	return &Index{
		index: &sdkIndex{index: client.InitIndex(cfg.IndexName)},
		name:  cfg.IndexName,
		wait:  cfg.WaitForTask,
	}, nil
}

// UpsertBatch saves records; objectID is the key.
func (i *Index) UpsertBatch(ctx context.Context, records []domain.IndexRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range records {
		if r.ObjectID() == "" {
			return fmt.Errorf("upsert record without objectID: %w", domain.ErrInvalidInput)
		}
	}
	if err := i.index.saveObjects(ctx, records, i.wait); err != nil {
		return fmt.Errorf("algolia save to %s: %w", i.name, err)
	}
	logger.Debug("algolia: saved %d objects to %s", len(records), i.name)
	return nil
}

// DeleteBatch deletes objects by id. Algolia treats unknown ids as no-ops.
func (i *Index) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := i.index.deleteObjects(ctx, ids, i.wait); err != nil {
		return fmt.Errorf("algolia delete from %s: %w", i.name, err)
	}
	logger.Debug("algolia: deleted %d objects from %s", len(ids), i.name)
	return nil
}

// Search queries the index. Hits come back in Algolia's ranking order;
// Score decreases with rank.
func (i *Index) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hits, err := i.index.search(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("algolia search %s: %w", i.name, err)
	}

	results := make([]domain.SearchResult, 0, len(hits))
	for n, hit := range hits {
		record := make(domain.IndexRecord, len(hit))
		var highlights []string
		for k, v := range hit {
			switch k {
			case "_highlightResult":
				highlights = collectHighlights(v)
			case "_snippetResult", "_rankingInfo":
			default:
				record[k] = v
			}
		}
		results = append(results, domain.SearchResult{
			Record:     record,
			Score:      float64(len(hits) - n),
			Highlights: highlights,
		})
	}
	return results, nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (i *Index) Close() error {
	return nil
}

// collectHighlights pulls matched values out of a _highlightResult tree.
func collectHighlights(v interface{}) []string {
	var out []string
	switch val := v.(type) {
	case map[string]interface{}:
		if level, ok := val["matchLevel"].(string); ok {
			if level != "none" {
				if s, ok := val["value"].(string); ok {
					out = append(out, s)
				}
			}
			return out
		}
		for _, child := range val {
			out = append(out, collectHighlights(child)...)
		}
	case []interface{}:
		for _, child := range val {
			out = append(out, collectHighlights(child)...)
		}
	}
	return out
}

// contentTypeFilter builds an Algolia filter expression. contentType must
// be declared in attributesForFaceting.
func contentTypeFilter(types []string) string {
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%s:%q", domain.FieldContentType, t))
	}
	return strings.Join(parts, " OR ")
}

// sdkIndex adapts *search.Index. The SDK takes the request context as
// one of its variadic options.
type sdkIndex struct {
	index *search.Index
}

func (s *sdkIndex) saveObjects(ctx context.Context, records []domain.IndexRecord, wait bool) error {
	objects := make([]map[string]interface{}, len(records))
	for n, r := range records {
		objects[n] = r
	}
	res, err := s.index.SaveObjects(objects, ctx)
	if err := contextErr(ctx, err); err != nil {
		return err
	}
	if wait {
		return contextErr(ctx, res.Wait(ctx))
	}
	return nil
}

func (s *sdkIndex) deleteObjects(ctx context.Context, ids []string, wait bool) error {
	res, err := s.index.DeleteObjects(ids, ctx)
	if err := contextErr(ctx, err); err != nil {
		return err
	}
	if wait {
		return contextErr(ctx, res.Wait(ctx))
	}
	return nil
}

func (s *sdkIndex) search(ctx context.Context, query string, opts domain.SearchOptions) ([]map[string]interface{}, error) {
	params := []interface{}{ctx}
	if opts.Limit > 0 {
		params = append(params, opt.Length(opts.Limit), opt.Offset(max(opts.Offset, 0)))
	}
	if len(opts.ContentTypes) > 0 {
		params = append(params, opt.Filters(contentTypeFilter(opts.ContentTypes)))
	}
	res, err := s.index.Search(query, params...)
	if err := contextErr(ctx, err); err != nil {
		return nil, err
	}
	return res.Hits, nil
}

// contextErr prefers the context's error. The SDK stops on a cancelled
// context but may report the abandoned call as a plain or nil error.
func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
