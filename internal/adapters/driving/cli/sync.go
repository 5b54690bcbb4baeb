package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/logger"
)

var (
	syncFull  bool
	syncReset bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync and exit",
	Long: `Fetches changes since the stored sync token and applies them to the index.
Without a stored token every published item is fetched.

--full refetches everything while keeping the old token until the first
page has been applied. --reset deletes the stored token first.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "refetch every item regardless of the stored token")
	syncCmd.Flags().BoolVar(&syncReset, "reset", false, "delete the stored token before syncing")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if syncReset {
		if err := app.Checkpoints.Clear(ctx); err != nil {
			return fmt.Errorf("reset checkpoint: %w", err)
		}
		cmd.Println("Stored sync token removed.")
	}

	cmd.Println("Synchronising...")
	if syncFull {
		err = app.Sync.Resync(ctx)
	} else {
		err = app.Sync.Sync(ctx)
	}

	status, statusErr := app.Sync.Status(ctx)
	if statusErr == nil && status.LastRun != nil {
		printRun(cmd, status.LastRun)
	}

	if err != nil {
		if errors.Is(err, domain.ErrSyncInProgress) {
			return errors.New("another sync is already running")
		}
		return fmt.Errorf("sync failed: %w", err)
	}
	cmd.Println("Sync complete.")
	return nil
}

func printRun(cmd *cobra.Command, run *domain.RunRecord) {
	mode := string(run.Mode)
	if run.FellBack {
		mode += " (token expired, fell back to initial)"
	}
	if logger.IsVerbose() {
		cmd.Printf("  Run:      %s\n", run.ID)
	}
	cmd.Printf("  Mode:     %s\n", mode)
	cmd.Printf("  Pages:    %d\n", run.Pages)
	cmd.Printf("  Upserted: %d\n", run.Upserted)
	cmd.Printf("  Deleted:  %d\n", run.Deleted)
	cmd.Printf("  Duration: %s\n", run.Duration().Round(time.Millisecond))
	if !run.Success && run.Error != "" {
		cmd.Printf("  Error:    %s\n", run.Error)
	}
}
