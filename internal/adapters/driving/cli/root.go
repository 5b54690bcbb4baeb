// Package cli provides the indexsync command line interface.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/indexsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/indexsync/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=v1.2.3".
var version = "dev"

var (
	configPath string
	verbose    bool
	logFile    string

	// cfg is the configuration loaded for the running command.
	cfg *file.Config
)

var rootCmd = &cobra.Command{
	Use:   "indexsync",
	Short: "Keep a search index in step with a content store",
	Long: `indexsync mirrors published content into a search index.

It fetches only what changed since the last run using the content store's
sync token, applies deletions and updates to the index in batches, and
saves the new token only after the index has accepted the changes.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.indexsync/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file, rotated by size")
}

// Execute runs the root command.
func Execute() error {
	defer func() { _ = logger.Close() }()
	return rootCmd.Execute()
}

// loadConfig reads the config file and environment, then applies the
// logging settings.
func loadConfig(cmd *cobra.Command, _ []string) error {
	path := configPath
	if path == "" {
		var err error
		if path, err = file.DefaultPath(); err != nil {
			return err
		}
	}

	loaded, err := file.Load(path)
	if err != nil {
		return err
	}
	loaded.ApplyEnv(os.LookupEnv)

	if cmd.Flags().Changed("verbose") {
		loaded.Log.Verbose = verbose
	}
	if logFile != "" {
		loaded.Log.File = logFile
	}

	logger.SetVerbose(loaded.Log.Verbose)
	if loaded.Log.File != "" {
		logger.SetFile(logger.FileOptions{Path: loaded.Log.File, MaxBackups: 5, MaxAgeDays: 28})
	}
	logger.Debug("config: %s", path)

	cfg = loaded
	return nil
}
