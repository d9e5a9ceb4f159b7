package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/connect3/instagram-ingestor/internal/config"
	"github.com/connect3/instagram-ingestor/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP trigger",
	Long: `Serves the HTTP trigger. POST /run-task starts a batch in the background.
When SCHEDULE_INTERVAL is set the batch also runs periodically, and edits to
the config file re-seed accounts without a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if server == nil {
		return errors.New("http server not configured")
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if taskScheduler != nil {
		go func() {
			if err := taskScheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler stopped: %v", err)
			}
		}()
	}

	if configPath != "" && accountSeeder != nil && seedSource != nil {
		go func() {
			if err := config.Watch(ctx, configPath, func() { reseed(ctx) }); err != nil {
				logger.Warn("config watch disabled: %v", err)
			}
		}()
	}

	return server.ListenAndServe(ctx, listenAddr)
}

// reseed creates accounts added to the config file since startup.
func reseed(ctx context.Context) {
	seeds, err := seedSource()
	if err != nil {
		logger.Warn("Reloading seed accounts failed: %v", err)
		return
	}
	created, err := accountSeeder.Seed(ctx, seeds)
	if err != nil {
		logger.Error("Seeding accounts failed: %v", err)
	}
	if created > 0 {
		logger.Info("Seeded %d new accounts from %s.", created, configPath)
	}
}
