package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/indexsync/internal/core/domain"
)

// FileName is the config file name inside the config directory.
const FileName = "config.toml"

// Source types.
const (
	SourceContentful = "contentful"
	SourceLocalDir   = "localdir"
)

// Index types.
const (
	IndexSQLite  = "sqlite"
	IndexAlgolia = "algolia"
	IndexMemory  = "memory"
)

// Duration is a time.Duration written as a string such as "60s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full indexsync configuration.
type Config struct {
	Source     SourceConfig     `toml:"source"`
	Index      IndexConfig      `toml:"index"`
	Checkpoint CheckpointConfig `toml:"checkpoint"`
	Sync       SyncConfig       `toml:"sync"`
	Trigger    TriggerConfig    `toml:"trigger"`
	Webhook    WebhookConfig    `toml:"webhook"`
	Scheduler  SchedulerConfig  `toml:"scheduler"`
	Storage    StorageConfig    `toml:"storage"`
	Log        LogConfig        `toml:"log"`
}

// SourceConfig selects and configures the content store.
type SourceConfig struct {
	Type          string  `toml:"type"`
	SpaceID       string  `toml:"space"`
	Environment   string  `toml:"environment"`
	AccessToken   string  `toml:"access_token"`
	SyncType      string  `toml:"sync_type"`
	ContentType   string  `toml:"content_type"`
	Locale        string  `toml:"locale"`
	BaseURL       string  `toml:"base_url"`
	RatePerSecond float64 `toml:"rate_per_second"`
	Dir           string  `toml:"dir"`
}

// IndexConfig selects and configures the search index.
type IndexConfig struct {
	Type        string `toml:"type"`
	AppID       string `toml:"app_id"`
	APIKey      string `toml:"api_key"`
	IndexName   string `toml:"index_name"`
	BatchSize   int    `toml:"batch_size"`
	WaitForTask bool   `toml:"wait_for_task"`
}

// CheckpointConfig locates the continuation token.
type CheckpointConfig struct {
	DSN string `toml:"dsn"`
	Key string `toml:"key"`
}

// SyncConfig tunes sync runs.
type SyncConfig struct {
	MaxFetchAttempts int      `toml:"max_fetch_attempts"`
	RetryDelay       Duration `toml:"retry_delay"`
	OnStartup        bool     `toml:"on_startup"`
}

// TriggerConfig tunes the event debouncer.
type TriggerConfig struct {
	Delay Duration `toml:"delay"`
	Kinds []string `toml:"kinds"`
}

// WebhookConfig configures the HTTP listener.
type WebhookConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Path         string `toml:"path"`
	Secret       string `toml:"secret"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// SchedulerConfig configures the fallback sync.
type SchedulerConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      Duration `toml:"interval"`
	PruneInterval Duration `toml:"prune_interval"`
}

// StorageConfig locates local state.
type StorageConfig struct {
	DataDir string `toml:"data_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	File    string `toml:"file"`
	Verbose bool   `toml:"verbose"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	sched := domain.DefaultSchedulerConfig()
	return &Config{
		Source: SourceConfig{
			Type:        SourceContentful,
			Environment: "master",
		},
		Index: IndexConfig{
			Type:      IndexSQLite,
			BatchSize: 1000,
		},
		Checkpoint: CheckpointConfig{
			DSN: "sqlite://",
			Key: "default",
		},
		Sync: SyncConfig{
			MaxFetchAttempts: 3,
			RetryDelay:       Duration{time.Second},
			OnStartup:        true,
		},
		Trigger: TriggerConfig{
			Delay: Duration{60 * time.Second},
			Kinds: domain.DefaultTriggerKinds(),
		},
		Webhook: WebhookConfig{
			Enabled:      true,
			Addr:         ":8080",
			Path:         "/webhook",
			MaxBodyBytes: 1 << 20,
		},
		Scheduler: SchedulerConfig{
			Enabled:       sched.Enabled,
			Interval:      Duration{sched.GetTaskConfig(domain.TaskIDFallbackSync).Interval},
			PruneInterval: Duration{sched.GetTaskConfig(domain.TaskIDHistoryPrune).Interval},
		},
	}
}

// SchedulerDomainConfig converts the scheduler section for the core.
// A zero interval disables the corresponding task.
func (c *Config) SchedulerDomainConfig() domain.SchedulerConfig {
	return domain.SchedulerConfig{
		Enabled: c.Scheduler.Enabled,
		TaskConfigs: map[string]domain.TaskConfig{
			domain.TaskIDFallbackSync: {
				Enabled:  c.Scheduler.Interval.Duration > 0,
				Interval: c.Scheduler.Interval.Duration,
			},
			domain.TaskIDHistoryPrune: {
				Enabled:  c.Scheduler.PruneInterval.Duration > 0,
				Interval: c.Scheduler.PruneInterval.Duration,
			},
		},
	}
}

// Validate checks the settings that have no usable default.
func (c *Config) Validate() error {
	var errs []error
	switch c.Source.Type {
	case SourceContentful:
		if c.Source.SpaceID == "" {
			errs = append(errs, errors.New("source.space is required"))
		}
		if c.Source.AccessToken == "" {
			errs = append(errs, errors.New("source.access_token is required (or INDEXSYNC_ACCESS_TOKEN)"))
		}
	case SourceLocalDir:
		if c.Source.Dir == "" {
			errs = append(errs, errors.New("source.dir is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("source.type %q is not one of %s, %s", c.Source.Type, SourceContentful, SourceLocalDir))
	}

	switch c.Index.Type {
	case IndexSQLite, IndexMemory:
	case IndexAlgolia:
		if c.Index.AppID == "" || c.Index.APIKey == "" || c.Index.IndexName == "" {
			errs = append(errs, errors.New("index.app_id, index.api_key and index.index_name are required for algolia"))
		}
	default:
		errs = append(errs, fmt.Errorf("index.type %q is not one of %s, %s, %s", c.Index.Type, IndexSQLite, IndexAlgolia, IndexMemory))
	}

	if c.Trigger.Delay.Duration < 0 {
		errs = append(errs, errors.New("trigger.delay must not be negative"))
	}
	if c.Index.BatchSize < 0 {
		errs = append(errs, errors.New("index.batch_size must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// DefaultDir returns ~/.indexsync.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".indexsync"), nil
}

// DefaultPath returns ~/.indexsync/config.toml.
func DefaultPath() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides are not applied; see ApplyEnv.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions, creating the
// directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	// Write with restricted permissions
	return os.WriteFile(path, data, 0600)
}
