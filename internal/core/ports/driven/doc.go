// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - ChangeFetcher: Retrieves change sets from the content store
//   - CheckpointStore: Continuation token persistence
//   - SearchIndex: The index being kept in sync
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - RunHistoryStore: Run history. Without it, status reports only in-process state.
//   - SchedulerStore: Background task state. Required only when the scheduler runs.
//   - Searcher: Local queries. Only backends that can answer queries provide it.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
