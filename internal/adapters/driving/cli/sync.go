package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one ingestion batch",
	Long: `Runs one batch in the foreground: configured accounts are seeded, tokens
close to expiry are refreshed and new posts of every account are stored,
stopping when the request budget is spent.`,
	RunE: runBatch,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create configured accounts that are not stored yet",
	Long: `Reads INSTAGRAM_USER_ID*/INSTAGRAM_ACCESS_TOKEN* pairs and [[accounts]]
entries from the config file and creates the missing accounts.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(seedCmd)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	if syncOrchestrator == nil {
		return errors.New("sync service not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.Println("Running batch...")
	status, err := syncOrchestrator.RunBatch(ctx)
	if errors.Is(err, domain.ErrSyncInProgress) {
		return errors.New("a batch is already running")
	}
	if err != nil {
		return fmt.Errorf("batch failed: %w", err)
	}

	cmd.Printf("Batch %s completed: %d/%d accounts processed (%d failed), %d posts inserted, %d requests used.\n",
		status.RunID, status.AccountsProcessed, status.AccountsTotal, status.AccountsFailed,
		status.PostsInserted, status.RequestsUsed)
	if status.BudgetExhausted {
		cmd.Println("Request budget exhausted; remaining accounts wait for the next run.")
	}
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	if accountSeeder == nil || seedSource == nil {
		return errors.New("seed service not configured")
	}

	seeds, err := seedSource()
	if err != nil {
		return fmt.Errorf("reading seed accounts: %w", err)
	}
	if len(seeds) == 0 {
		cmd.Println("No seed accounts configured.")
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	created, err := accountSeeder.Seed(ctx, seeds)
	cmd.Printf("Seeded %d new accounts.\n", created)
	if err != nil {
		return fmt.Errorf("seed failed: %w", err)
	}
	return nil
}
