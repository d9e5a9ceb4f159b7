// Package cli provides the ingestor command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/connect3/instagram-ingestor/internal/app"
	"github.com/connect3/instagram-ingestor/internal/config"
	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driving"
	"github.com/connect3/instagram-ingestor/internal/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

// Flags.
var (
	cfgFile string
	verbose bool
)

// httpServer serves the HTTP trigger until its context ends.
type httpServer interface {
	ListenAndServe(ctx context.Context, addr string) error
}

// Services used by the commands. They are populated by loadServices before
// a command runs; tests replace them directly.
var (
	syncOrchestrator driving.SyncOrchestrator
	accountSeeder    driving.AccountSeeder
	mediaRefresher   driving.MediaRefresher
	taskScheduler    driving.Scheduler
	server           httpServer
	listenAddr       string
	configPath       string
	seedSource       func() ([]domain.SeedAccount, error)
)

// loadServices builds the services and returns a cleanup function.
var loadServices = defaultLoadServices

var cleanup func() error

var rootCmd = &cobra.Command{
	Use:   "ingestor",
	Short: "Ingest Instagram posts for Connect3 accounts",
	Long: `ingestor keeps Instagram access tokens fresh and stores new posts of
every configured account, within a fixed request budget per run.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if cmd.Annotations["skipServices"] == "true" {
			return nil
		}
		fn, err := loadServices(cmd)
		if err != nil {
			return err
		}
		cleanup = fn
		return nil
	},
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return runCleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "path to a TOML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	// PersistentPostRunE is skipped when a command fails.
	if cleanupErr := runCleanup(); err == nil {
		err = cleanupErr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCleanup() error {
	if cleanup == nil {
		return nil
	}
	err := cleanup()
	cleanup = nil
	return err
}

func defaultLoadServices(cmd *cobra.Command) (func() error, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger.SetVerbose(verbose || cfg.Log.Verbose)
	logger.EnableFile(logger.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: 3,
		MaxAgeDays: 28,
	})

	a, err := app.New(cmd.Context(), cfg, nil)
	if err != nil {
		return nil, err
	}

	syncOrchestrator = a.Orchestrator
	accountSeeder = a.Seeder
	mediaRefresher = a.Media
	server = a.Server
	listenAddr = cfg.ListenAddr
	configPath = cfg.Path
	seedSource = cfg.SeedAccounts
	if a.Scheduler != nil {
		taskScheduler = a.Scheduler
	}

	return func() error {
		err := a.Close()
		if logErr := logger.Close(); err == nil {
			err = logErr
		}
		return err
	}, nil
}
