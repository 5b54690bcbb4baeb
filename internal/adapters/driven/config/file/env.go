package file

import (
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/indexsync/internal/logger"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INDEXSYNC_"

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides settings from INDEXSYNC_* variables. Malformed
// numbers and durations are logged and leave the current value in place.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	e := envReader{lookup: lookup}

	c.Source.Type = e.str("SOURCE", c.Source.Type)
	c.Source.SpaceID = e.str("SPACE_ID", c.Source.SpaceID)
	c.Source.Environment = e.str("ENVIRONMENT", c.Source.Environment)
	c.Source.AccessToken = e.str("ACCESS_TOKEN", c.Source.AccessToken)
	c.Source.BaseURL = e.str("BASE_URL", c.Source.BaseURL)
	c.Source.Dir = e.str("SOURCE_DIR", c.Source.Dir)

	c.Index.Type = e.str("INDEX", c.Index.Type)
	c.Index.AppID = e.str("ALGOLIA_APP_ID", c.Index.AppID)
	c.Index.APIKey = e.str("ALGOLIA_API_KEY", c.Index.APIKey)
	c.Index.IndexName = e.str("ALGOLIA_INDEX", c.Index.IndexName)
	c.Index.BatchSize = e.integer("BATCH_SIZE", c.Index.BatchSize)

	c.Checkpoint.DSN = e.str("CHECKPOINT_DSN", c.Checkpoint.DSN)
	c.Checkpoint.Key = e.str("CHECKPOINT_KEY", c.Checkpoint.Key)

	c.Sync.MaxFetchAttempts = e.integer("MAX_FETCH_ATTEMPTS", c.Sync.MaxFetchAttempts)
	c.Sync.RetryDelay.Duration = e.duration("RETRY_DELAY", c.Sync.RetryDelay.Duration)

	c.Trigger.Delay.Duration = e.duration("TRIGGER_DELAY", c.Trigger.Delay.Duration)
	if kinds, ok := lookup(EnvPrefix + "TRIGGER_KINDS"); ok {
		c.Trigger.Kinds = splitList(kinds)
	}

	c.Webhook.Addr = e.str("WEBHOOK_ADDR", c.Webhook.Addr)
	c.Webhook.Secret = e.str("WEBHOOK_SECRET", c.Webhook.Secret)

	c.Scheduler.Interval.Duration = e.duration("FALLBACK_INTERVAL", c.Scheduler.Interval.Duration)

	c.Storage.DataDir = e.str("DATA_DIR", c.Storage.DataDir)
	c.Log.File = e.str("LOG_FILE", c.Log.File)
}

type envReader struct {
	lookup LookupFunc
}

func (e envReader) raw(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e envReader) str(name, fallback string) string {
	if v, ok := e.raw(name); ok {
		return v
	}
	return fallback
}

func (e envReader) integer(name string, fallback int) int {
	raw, ok := e.raw(name)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logger.Warn("invalid %s%s=%q, using fallback %d", EnvPrefix, name, raw, fallback)
		return fallback
	}
	return value
}

func (e envReader) duration(name string, fallback time.Duration) time.Duration {
	raw, ok := e.raw(name)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		logger.Warn("invalid %s%s=%q, using fallback %s", EnvPrefix, name, raw, fallback.String())
		return fallback
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
