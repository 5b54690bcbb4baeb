package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/indexsync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/indexsync/internal/adapters/driving/webhook"
	"github.com/custodia-labs/indexsync/internal/connectors/localdir"
	"github.com/custodia-labs/indexsync/internal/core/domain"
	"github.com/custodia-labs/indexsync/internal/core/services"
	"github.com/custodia-labs/indexsync/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync daemon",
	Long: `Runs until interrupted. Change notifications from the webhook listener
(or the directory watcher for a local source) are debounced into sync runs.
A periodic fallback sync catches changes whose notifications were lost, and
an optional sync runs at startup.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.SetTimestamps(true)

	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return serve(ctx, cfg, app)
}

// serve runs every long-lived component until ctx is cancelled or one of
// them fails.
func serve(ctx context.Context, c *file.Config, app *App) error {
	coalescer := services.NewCoalescer(app.Sync, c.Trigger.Delay.Duration,
		services.WithTriggerKinds(c.Trigger.Kinds))
	defer coalescer.Close()

	g, gctx := errgroup.WithContext(ctx)

	if c.Webhook.Enabled {
		srv, err := webhook.NewServer(coalescer, webhook.Config{
			Path:         c.Webhook.Path,
			Secret:       c.Webhook.Secret,
			MaxBodyBytes: c.Webhook.MaxBodyBytes,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			return srv.ListenAndServe(gctx, c.Webhook.Addr)
		})
	}

	if app.WatchDir != "" {
		watcher := localdir.NewWatcher(app.WatchDir, coalescer)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	if c.Scheduler.Enabled {
		scheduler := services.NewScheduler(c.SchedulerDomainConfig(), app.Tasks, app.Sync, app.History)
		g.Go(func() error {
			err := scheduler.Start(gctx)
			_ = scheduler.Stop()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if c.Sync.OnStartup {
		g.Go(func() error {
			logger.Info("Running startup sync")
			err := app.Sync.Sync(gctx)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled), errors.Is(err, domain.ErrSyncInProgress):
			default:
				// The scheduler and later events retry; the daemon keeps running.
				logger.Error("Startup sync failed: %v", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	logger.Info("indexsync %s running", version)
	err := g.Wait()
	logger.Info("indexsync stopped")
	return err
}
