package domain

import "time"

// Event kinds published by the content store's webhooks.
const (
	EventPublish   = "publish"
	EventUnpublish = "unpublish"
	EventDelete    = "delete"
	EventArchive   = "archive"
	EventUnarchive = "unarchive"
	EventSave      = "save"
)

// DefaultTriggerKinds lists the event kinds that change what is published.
func DefaultTriggerKinds() []string {
	return []string{EventPublish, EventUnpublish, EventDelete, EventArchive, EventUnarchive}
}

// Event is a notification that content may have changed.
// Events carry no content; they only cause a sync to be scheduled.
type Event struct {
	// Kind is the event name, e.g. "publish".
	Kind string

	// Source describes where the event came from (webhook, watcher, manual).
	Source string

	// ItemID is the affected item when known. Informational only.
	ItemID string

	// ReceivedAt is when the event arrived.
	ReceivedAt time.Time
}

// TriggerStats counts events seen by a coalescer.
type TriggerStats struct {
	// Received counts every event passed in.
	Received int64

	// Ignored counts events whose kind was not relevant.
	Ignored int64

	// Coalesced counts events absorbed into an already pending run.
	Coalesced int64

	// Fired counts runs started by the timer.
	Fired int64
}
