package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusHistory int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored checkpoint and recent runs",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusHistory, "history", "n", 5, "number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	status, err := app.Sync.Status(ctx)
	if err != nil {
		return fmt.Errorf("get status: %w", err)
	}

	if status.HasCheckpoint {
		cmd.Printf("Checkpoint: saved %s\n", status.CheckpointSavedAt.Local().Format(time.RFC3339))
	} else {
		cmd.Println("Checkpoint: none (next sync is a full fetch)")
	}
	if status.Running {
		cmd.Println("A sync is running.")
	}

	if statusHistory <= 0 || app.History == nil {
		return nil
	}
	runs, err := app.History.ListRuns(ctx, statusHistory)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	cmd.Println()
	cmd.Println("Recent runs:")
	for i := range runs {
		r := &runs[i]
		result := "ok"
		if !r.Success {
			result = "failed: " + r.Error
		}
		cmd.Printf("  %s  %-11s +%d -%d  %s\n",
			r.StartedAt.Local().Format(time.RFC3339), r.Mode, r.Upserted, r.Deleted, result)
	}
	return nil
}
