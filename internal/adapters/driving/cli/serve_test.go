package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/indexsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/indexsync/internal/adapters/driven/storage/memory"
)

func memoryConfig(t *testing.T) (*file.Config, string) {
	t.Helper()
	items := t.TempDir()
	c := file.Default()
	c.Source.Type = file.SourceLocalDir
	c.Source.Dir = items
	c.Index.Type = file.IndexMemory
	c.Checkpoint.DSN = "memory://"
	c.Trigger.Delay = file.Duration{Duration: 50 * time.Millisecond}
	c.Webhook.Addr = "127.0.0.1:0"
	c.Scheduler.Enabled = false
	return c, items
}

func TestBuildApp_Memory(t *testing.T) {
	c, items := memoryConfig(t)

	app, err := buildApp(context.Background(), c)
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, items, app.WatchDir)
	assert.IsType(t, &memory.SearchIndex{}, app.Index)
	assert.IsType(t, &memory.CheckpointStore{}, app.Checkpoints)
	assert.NotNil(t, app.Sync)
	assert.NotNil(t, app.Search)
}

func TestBuildApp_InvalidConfig(t *testing.T) {
	c, _ := memoryConfig(t)
	c.Source.Dir = ""

	_, err := buildApp(context.Background(), c)
	assert.Error(t, err)
}

func TestBuildApp_UnknownCheckpointBackend(t *testing.T) {
	c, _ := memoryConfig(t)
	c.Index.Type = file.IndexSQLite
	c.Storage.DataDir = t.TempDir()
	c.Checkpoint.DSN = "redis://localhost"

	_, err := buildApp(context.Background(), c)
	assert.Error(t, err)
}

func TestBuildApp_ErrorsAfterLocalStoreOpened(t *testing.T) {
	tests := map[string]func(c *file.Config){
		"missing source directory": func(c *file.Config) {
			c.Source.Dir = filepath.Join(t.TempDir(), "gone")
		},
		"checkpoint dsn without key": func(c *file.Config) {
			c.Checkpoint.DSN = "s3://bucket-only"
		},
		"unreadable checkpoint dsn": func(c *file.Config) {
			c.Checkpoint.DSN = "postgres://%zz"
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c, _ := memoryConfig(t)
			c.Index.Type = file.IndexSQLite
			c.Storage.DataDir = t.TempDir()
			mutate(c)

			var app *App
			var err error
			require.NotPanics(t, func() {
				app, err = buildApp(context.Background(), c)
			})
			assert.Error(t, err)
			assert.Nil(t, app)
		})
	}
}

func TestServe_StartupSyncAndWatcher(t *testing.T) {
	c, items := memoryConfig(t)
	writeItem(t, items, "a", `{"title": "Alpha"}`)

	app, err := buildApp(context.Background(), c)
	require.NoError(t, err)
	defer app.Close()
	index := app.Index.(*memory.SearchIndex)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, c, app) }()

	require.Eventually(t, func() bool { return index.Len() == 1 }, 5*time.Second, 20*time.Millisecond,
		"startup sync should index the existing item")

	// A new file reaches the index through the watcher and the coalescer.
	require.Eventually(t, func() bool {
		writeItem(t, items, "b", `{"title": "Beta"}`)
		_, ok := index.Get("b")
		return ok
	}, 5*time.Second, 100*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_WebhookListenFailure(t *testing.T) {
	c, _ := memoryConfig(t)
	c.Sync.OnStartup = false
	c.Webhook.Addr = "256.0.0.1:99999"

	app, err := buildApp(context.Background(), c)
	require.NoError(t, err)
	defer app.Close()

	err = serve(context.Background(), c, app)
	assert.Error(t, err)
}
