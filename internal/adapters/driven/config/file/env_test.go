package file

import (
	"bytes"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/indexsync/internal/logger"
)

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(mapLookup(map[string]string{
		"INDEXSYNC_SPACE_ID":       "space-from-env",
		"INDEXSYNC_ACCESS_TOKEN":   "secret",
		"INDEXSYNC_BATCH_SIZE":     "50",
		"INDEXSYNC_TRIGGER_DELAY":  "5s",
		"INDEXSYNC_TRIGGER_KINDS":  "publish, delete ,",
		"INDEXSYNC_CHECKPOINT_DSN": "postgres://localhost/indexsync",
		"INDEXSYNC_WEBHOOK_SECRET": "hook",
	}))

	assert.Equal(t, "space-from-env", cfg.Source.SpaceID)
	assert.Equal(t, "secret", cfg.Source.AccessToken)
	assert.Equal(t, 50, cfg.Index.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Trigger.Delay.Duration)
	assert.Equal(t, []string{"publish", "delete"}, cfg.Trigger.Kinds)
	assert.Equal(t, "postgres://localhost/indexsync", cfg.Checkpoint.DSN)
	assert.Equal(t, "hook", cfg.Webhook.Secret)
}

func TestApplyEnv_BlankValuesIgnored(t *testing.T) {
	cfg := Default()
	cfg.ApplyEnv(mapLookup(map[string]string{"INDEXSYNC_INDEX": "  "}))
	assert.Equal(t, IndexSQLite, cfg.Index.Type)
}

func TestApplyEnv_MalformedFallsBack(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stderr) })

	cfg := Default()
	cfg.ApplyEnv(mapLookup(map[string]string{
		"INDEXSYNC_BATCH_SIZE":    "lots",
		"INDEXSYNC_TRIGGER_DELAY": "a minute",
	}))

	assert.Equal(t, 1000, cfg.Index.BatchSize)
	assert.Equal(t, 60*time.Second, cfg.Trigger.Delay.Duration)
	assert.Contains(t, buf.String(), "INDEXSYNC_BATCH_SIZE")
	assert.Contains(t, buf.String(), "INDEXSYNC_TRIGGER_DELAY")
}
