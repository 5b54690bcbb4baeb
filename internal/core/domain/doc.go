// Package domain defines the core business entities for indexsync.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ContentItem: A published item from the content store
//   - IndexRecord: The flattened form written to the search index
//   - ChangeSet: One page of upserts and deletions plus a continuation token
//   - Checkpoint: The durable continuation token
//   - RunRecord: The outcome of a sync run
//   - Event: A change notification that schedules a sync
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
