package services

import (
	"context"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
	"github.com/custodia-labs/indexsync/internal/logger"
)

// DefaultBatchSize is the number of records sent per index call.
const DefaultBatchSize = 1000

// Reconciler applies change sets to the search index.
// Deletions are applied before upserts so an id that was deleted and
// re-created within one change set ends up present.
type Reconciler struct {
	index     driven.SearchIndex
	batchSize int
}

// NewReconciler creates a reconciler writing to index.
// A batchSize of zero or less uses DefaultBatchSize.
func NewReconciler(index driven.SearchIndex, batchSize int) *Reconciler {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Reconciler{
		index:     index,
		batchSize: batchSize,
	}
}

// Apply writes one change set to the index.
// Empty lists produce no index calls. On failure the returned result
// holds what was applied before the failing batch, and the error is a
// *domain.IndexWriteError.
func (r *Reconciler) Apply(ctx context.Context, cs *domain.ChangeSet) (domain.ReconcileResult, error) {
	var result domain.ReconcileResult
	if cs == nil {
		return result, nil
	}

	ids := dedupeIDs(cs.Deletions)
	for start, batch := 0, 0; start < len(ids); start, batch = start+r.batchSize, batch+1 {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(start+r.batchSize, len(ids))
		chunk := ids[start:end]

		logger.Debug("Deleting %d records (batch %d)", len(chunk), batch)
		if err := r.index.DeleteBatch(ctx, chunk); err != nil {
			return result, &domain.IndexWriteError{
				Op:       "delete",
				Batch:    batch,
				Upserted: result.Upserted,
				Deleted:  result.Deleted,
				Err:      err,
			}
		}
		result.Deleted += len(chunk)
		result.DeleteCalls++
	}

	records := flattenItems(cs.Upserts)
	for start, batch := 0, 0; start < len(records); start, batch = start+r.batchSize, batch+1 {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		end := min(start+r.batchSize, len(records))
		chunk := records[start:end]

		logger.Debug("Upserting %d records (batch %d)", len(chunk), batch)
		if err := r.index.UpsertBatch(ctx, chunk); err != nil {
			return result, &domain.IndexWriteError{
				Op:       "upsert",
				Batch:    batch,
				Upserted: result.Upserted,
				Deleted:  result.Deleted,
				Err:      err,
			}
		}
		result.Upserted += len(chunk)
		result.UpsertCalls++
	}

	if result.Deleted == 0 && result.Upserted == 0 {
		logger.Debug("Nothing to apply to the index")
	}
	return result, nil
}

// dedupeIDs drops repeated ids, keeping first-seen order.
func dedupeIDs(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// flattenItems converts items to records. When an id repeats, the later
// item wins but keeps the position of the first occurrence.
func flattenItems(items []domain.ContentItem) []domain.IndexRecord {
	if len(items) == 0 {
		return nil
	}
	pos := make(map[string]int, len(items))
	out := make([]domain.IndexRecord, 0, len(items))
	for i := range items {
		rec := items[i].Record()
		if at, ok := pos[items[i].ID]; ok {
			out[at] = rec
			continue
		}
		pos[items[i].ID] = len(out)
		out = append(out, rec)
	}
	return out
}
