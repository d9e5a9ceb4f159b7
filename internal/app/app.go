// Package app wires configuration, storage, the Graph API client and the
// core services into a runnable application.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/connect3/instagram-ingestor/internal/adapters/driving/httpapi"
	"github.com/connect3/instagram-ingestor/internal/config"
	"github.com/connect3/instagram-ingestor/internal/connectors/instagram"
	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
	"github.com/connect3/instagram-ingestor/internal/core/services"
	"github.com/connect3/instagram-ingestor/internal/logger"
)

// App holds the wired services.
type App struct {
	Config       *config.Config
	Store        Store
	Orchestrator *services.BatchOrchestrator
	Seeder       *services.Seeder
	Media        *services.MediaRefresher
	Scheduler    *services.Scheduler
	Server       *httpapi.Server
}

// New builds the application from cfg. graph may be nil, in which case a
// Graph API client is created from cfg.Graph.
func New(ctx context.Context, cfg *config.Config, graph driven.GraphClient) (*App, error) {
	store, err := OpenStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	logger.Debug("storage backend: %s", BackendFor(cfg.DatabaseURL))

	if graph == nil {
		graph = instagram.NewClient(instagram.Config{
			BaseURL:    cfg.Graph.BaseURL,
			RefreshURL: cfg.Graph.RefreshURL,
			Timeout:    cfg.Graph.Timeout,
			PageSize:   cfg.Graph.PageSize,
		})
	}

	accounts := store.AccountStore()
	posts := store.PostStore()
	history := store.SchedulerStore()

	tokens := services.NewTokenManager(accounts, graph)
	walker := services.NewPostWalker(accounts, posts, graph)
	orch := services.NewBatchOrchestrator(accounts, tokens, walker, history, services.BatchConfig{
		MaxRequests:  cfg.Batch.MaxRequests,
		AccountDelay: cfg.Batch.AccountDelay,
	})

	seeder := services.NewSeeder(accounts, graph, tokens, cfg.Batch.MaxRequests)
	orch.SetSeeder(seeder, func() []domain.SeedAccount {
		seeds, err := cfg.SeedAccounts()
		if err != nil {
			logger.Warn("Reading seed accounts failed, using startup values: %v", err)
			return cfg.Accounts
		}
		return seeds
	})

	media := services.NewMediaRefresher(accounts, posts, graph)

	a := &App{
		Config:       cfg,
		Store:        store,
		Orchestrator: orch,
		Seeder:       seeder,
		Media:        media,
		Server:       httpapi.NewServer(orch, media, httpapi.DefaultHandlerTimeout),
	}
	if cfg.ScheduleInterval > 0 {
		a.Scheduler = services.NewScheduler(SchedulerConfig(cfg.ScheduleInterval), history, orch)
	}
	return a, nil
}

// SchedulerConfig enables the sync task at interval.
func SchedulerConfig(interval time.Duration) domain.SchedulerConfig {
	return domain.SchedulerConfig{
		Enabled: interval > 0,
		TaskConfigs: map[string]domain.TaskConfig{
			domain.TaskIDInstagramSync: {Enabled: interval > 0, Interval: interval},
		},
	}
}

// Close stops the scheduler, waits for a background run to finish and
// releases the store.
func (a *App) Close() error {
	var stop func() error
	if a.Scheduler != nil {
		stop = a.Scheduler.Stop
	}
	wait := func() error {
		a.Orchestrator.Wait()
		return nil
	}
	return closeAll(stop, wait, a.Store.Close)
}
