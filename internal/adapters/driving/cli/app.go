package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/indexsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/indexsync/internal/adapters/driven/search/algolia"
	"github.com/custodia-labs/indexsync/internal/adapters/driven/storage"
	"github.com/custodia-labs/indexsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/indexsync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/indexsync/internal/connectors/contentful"
	"github.com/custodia-labs/indexsync/internal/connectors/localdir"
	"github.com/custodia-labs/indexsync/internal/core/ports/driven"
	"github.com/custodia-labs/indexsync/internal/core/ports/driving"
	"github.com/custodia-labs/indexsync/internal/core/services"
)

// App holds the components wired from a Config.
type App struct {
	Fetcher     driven.ChangeFetcher
	Index       driven.SearchIndex
	Checkpoints driven.CheckpointStore
	History     driven.RunHistoryStore
	Tasks       driven.SchedulerStore

	Sync   driving.SyncOrchestrator
	Search driving.SearchService

	// WatchDir is the directory to watch for a local source; empty otherwise.
	WatchDir string

	closers []io.Closer
}

// Close releases every resource the app opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newApp builds the App for a command. Tests replace it.
var newApp = buildApp

func buildApp(ctx context.Context, c *file.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	app := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	// Everything stays in memory when neither the index nor the
	// checkpoint needs the local database.
	var local *sqlite.Store
	if c.Index.Type == file.IndexMemory && strings.HasPrefix(c.Checkpoint.DSN, "memory") {
		app.History = memory.NewRunHistoryStore()
		app.Tasks = memory.NewSchedulerStore()
	} else {
		var err error
		local, err = sqlite.NewStore(c.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open local store: %w", err)
		}
		app.closers = append(app.closers, local)
		app.History = local.RunHistoryStore()
		app.Tasks = local.SchedulerStore()
	}

	var err error
	if app.Fetcher, app.WatchDir, err = buildFetcher(c); err != nil {
		return nil, err
	}

	if app.Index, err = buildIndex(c, local); err != nil {
		return nil, err
	}
	app.closers = append(app.closers, app.Index)

	checkpoints, closer, err := storage.BuildCheckpointStoreFromDSN(ctx, c.Checkpoint.DSN, storage.CheckpointOptions{
		Key:   c.Checkpoint.Key,
		Local: local,
	})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	app.Checkpoints = checkpoints
	app.closers = append(app.closers, closer)

	app.Sync = services.NewSyncOrchestrator(
		app.Fetcher,
		app.Checkpoints,
		services.NewReconciler(app.Index, c.Index.BatchSize),
		services.WithRunHistory(app.History),
		services.WithRetry(c.Sync.MaxFetchAttempts, c.Sync.RetryDelay.Duration),
	)

	var searcher driven.Searcher
	if s, ok := app.Index.(driven.Searcher); ok {
		searcher = s
	}
	app.Search = services.NewSearchService(searcher)

	ok = true
	return app, nil
}

func buildFetcher(c *file.Config) (driven.ChangeFetcher, string, error) {
	switch c.Source.Type {
	case file.SourceLocalDir:
		f := localdir.New(c.Source.Dir)
		if err := f.Validate(); err != nil {
			return nil, "", err
		}
		return f, f.Dir(), nil
	default:
		f, err := contentful.NewFetcher(contentful.Config{
			SpaceID:       c.Source.SpaceID,
			Environment:   c.Source.Environment,
			AccessToken:   c.Source.AccessToken,
			BaseURL:       c.Source.BaseURL,
			SyncType:      c.Source.SyncType,
			ContentType:   c.Source.ContentType,
			Locale:        c.Source.Locale,
			RatePerSecond: c.Source.RatePerSecond,
		})
		return f, "", err
	}
}

func buildIndex(c *file.Config, local *sqlite.Store) (driven.SearchIndex, error) {
	switch c.Index.Type {
	case file.IndexAlgolia:
		return algolia.New(algolia.Config{
			AppID:       c.Index.AppID,
			APIKey:      c.Index.APIKey,
			IndexName:   c.Index.IndexName,
			WaitForTask: c.Index.WaitForTask,
		})
	case file.IndexMemory:
		return memory.NewSearchIndex(), nil
	default:
		return local.SearchIndex(), nil
	}
}
