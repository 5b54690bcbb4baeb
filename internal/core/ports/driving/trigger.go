package driving

import "github.com/custodia-labs/indexsync/internal/core/domain"

// Trigger turns change notifications into debounced sync runs.
type Trigger interface {
	// OnEvent schedules a sync for a relevant event.
	// Returns false when the event kind was ignored.
	OnEvent(event domain.Event) bool

	// Cancel stops a pending run. Returns true if one was pending.
	Cancel() bool

	// Pending reports whether a run is scheduled.
	Pending() bool

	// Stats returns event counters.
	Stats() domain.TriggerStats
}
