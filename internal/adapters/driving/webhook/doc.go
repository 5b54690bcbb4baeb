// Package webhook provides the HTTP listener that turns content store
// webhook deliveries into trigger events.
//
// Deliveries carry no content. The handler extracts the event kind, checks
// the shared secret, validates the body and hands an Event to the trigger,
// which debounces bursts into a single sync.
package webhook
