package localdir

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/ports/driving"
	"github.com/custodia-labs/indexsync/internal/logger"
)

// EventSource identifies events produced by the watcher.
const EventSource = "localdir"

// Watcher forwards changes to item files as trigger events.
type Watcher struct {
	dir     string
	trigger driving.Trigger
	now     func() time.Time
}

// NewWatcher creates a watcher for dir that notifies trigger.
func NewWatcher(dir string, trigger driving.Trigger) *Watcher {
	return &Watcher{dir: dir, trigger: trigger, now: time.Now}
}

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	logger.Info("localdir: watching %s", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event, ok := w.handleFsEvent(ev); ok {
				logger.Debug("localdir: %s %s", event.Kind, event.ItemID)
				w.trigger.OnEvent(event)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("localdir: watcher error: %v", err)
		}
	}
}

// handleFsEvent converts an fsnotify event. Chmod-only events, hidden
// files and non-item files are ignored.
func (w *Watcher) handleFsEvent(ev fsnotify.Event) (domain.Event, bool) {
	name := filepath.Base(ev.Name)
	if isHidden(name) || !strings.HasSuffix(name, Extension) {
		return domain.Event{}, false
	}

	var kind string
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		kind = domain.EventPublish
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A rename's new name arrives as a separate Create.
		kind = domain.EventDelete
	default:
		return domain.Event{}, false
	}

	return domain.Event{
		Kind:       kind,
		Source:     EventSource,
		ItemID:     strings.TrimSuffix(name, Extension),
		ReceivedAt: w.now(),
	}, true
}
