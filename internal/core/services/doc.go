// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The sync pipeline is fetch, reconcile, checkpoint: SyncOrchestrator
// pulls a change set, Reconciler applies it to the index, and only then
// is the continuation token saved. Coalescer and Scheduler decide when
// the pipeline runs.
package services
