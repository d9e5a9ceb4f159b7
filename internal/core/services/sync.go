package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driving"
	"github.com/connect3/instagram-ingestor/internal/logger"
)

// Ensure BatchOrchestrator implements the interface.
var _ driving.SyncOrchestrator = (*BatchOrchestrator)(nil)

// historyRetention is the number of run results kept in the history.
const historyRetention = 100

// DefaultAccountDelay is the pause between two accounts of a run.
const DefaultAccountDelay = 2 * time.Second

// BatchConfig configures batch runs.
type BatchConfig struct {
	// MaxRequests is the request ceiling of a single run.
	MaxRequests int

	// AccountDelay is the pause after an account before the next one
	// starts. Zero disables it.
	AccountDelay time.Duration
}

// DefaultBatchConfig returns the production batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxRequests:  domain.MaxRequestsPerRun,
		AccountDelay: DefaultAccountDelay,
	}
}

// BatchOrchestrator runs token maintenance and post ingestion over all
// accounts, sharing one request budget per run. Only one run is active at
// a time.
type BatchOrchestrator struct {
	accounts driven.AccountStore
	tokens   *TokenManager
	walker   *PostWalker
	history  driven.SchedulerStore
	config   BatchConfig

	seeder driving.AccountSeeder
	seeds  func() []domain.SeedAccount

	pause    func(ctx context.Context, d time.Duration) error
	newRunID func() string
	now      func() time.Time

	mu      sync.RWMutex
	running bool
	status  *driving.SyncStatus
	wg      sync.WaitGroup
}

// NewBatchOrchestrator creates a batch orchestrator.
// history is optional; without it runs are not recorded.
func NewBatchOrchestrator(
	accounts driven.AccountStore,
	tokens *TokenManager,
	walker *PostWalker,
	history driven.SchedulerStore,
	config BatchConfig,
) *BatchOrchestrator {
	o := &BatchOrchestrator{
		accounts: accounts,
		tokens:   tokens,
		walker:   walker,
		history:  history,
		config:   config,
		pause:    sleepContext,
		newRunID: uuid.NewString,
		now:      time.Now,
	}
	return o
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SetSeeder makes every run create the accounts returned by seeds before
// processing. seeds is called once per run so configuration changes apply.
func (o *BatchOrchestrator) SetSeeder(seeder driving.AccountSeeder, seeds func() []domain.SeedAccount) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seeder = seeder
	o.seeds = seeds
}

// RunBatch runs one batch and blocks until it completes.
func (o *BatchOrchestrator) RunBatch(ctx context.Context) (*driving.SyncStatus, error) {
	runID, err := o.begin()
	if err != nil {
		return nil, err
	}
	o.execute(ctx, runID)
	return o.Status(ctx)
}

// Start runs a batch in the background and returns its run ID.
// The run is detached from ctx cancellation so that it outlives the caller.
func (o *BatchOrchestrator) Start(ctx context.Context) (string, error) {
	runID, err := o.begin()
	if err != nil {
		return "", err
	}

	runCtx := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.execute(runCtx, runID)
	}()

	return runID, nil
}

// Wait blocks until background runs have finished.
func (o *BatchOrchestrator) Wait() {
	o.wg.Wait()
}

// Status returns a snapshot of the current or most recent run.
func (o *BatchOrchestrator) Status(_ context.Context) (*driving.SyncStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.status == nil {
		return &driving.SyncStatus{State: domain.BatchNotStarted}, nil
	}
	snapshot := *o.status
	return &snapshot, nil
}

// History returns recent run results, most recent first.
func (o *BatchOrchestrator) History(ctx context.Context, limit int) ([]domain.TaskResult, error) {
	if o.history == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	return o.history.GetTaskHistory(ctx, domain.TaskIDInstagramSync, limit)
}

// begin claims the run slot.
func (o *BatchOrchestrator) begin() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return "", domain.ErrSyncInProgress
	}
	o.running = true
	o.status = &driving.SyncStatus{
		RunID:     o.newRunID(),
		State:     domain.BatchRunning,
		StartedAt: o.now(),
	}
	return o.status.RunID, nil
}

// update applies fn to the current status under the lock.
func (o *BatchOrchestrator) update(fn func(s *driving.SyncStatus)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.status)
}

// execute performs the run. It always leaves the run completed.
func (o *BatchOrchestrator) execute(ctx context.Context, runID string) {
	budget := domain.NewRequestBudget(o.config.MaxRequests)
	var runErr error

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Batch run %s panicked: %v", runID, r)
			runErr = fmt.Errorf("panic: %v", r)
		}
		o.finish(ctx, budget, runErr)
	}()

	logger.Section("Batch " + runID)
	o.seed(ctx)

	accounts, err := o.accounts.ListForSync(ctx)
	if err != nil {
		logger.Error("Failed to load accounts: %v", err)
		runErr = fmt.Errorf("list accounts: %w", err)
		return
	}
	o.update(func(s *driving.SyncStatus) { s.AccountsTotal = len(accounts) })
	logger.Info("Found %d accounts to process.", len(accounts))

	for i := range accounts {
		if !budget.Remaining() {
			logger.Warn("Global rate limit reached. Stopping batch.")
			o.update(func(s *driving.SyncStatus) { s.BudgetExhausted = true })
			break
		}

		inserted, stop, err := o.processAccount(ctx, budget, &accounts[i])
		o.update(func(s *driving.SyncStatus) {
			s.AccountsProcessed++
			s.PostsInserted += inserted
			s.RequestsUsed = budget.Consumed()
			if err != nil {
				s.AccountsFailed++
			}
		})
		if err != nil {
			logger.Error("Error processing account %s: %v", accounts[i].DisplayName(), err)
		}
		if stop {
			logger.Warn("Global rate limit reached. Stopping batch.")
			o.update(func(s *driving.SyncStatus) { s.BudgetExhausted = true })
			break
		}

		if o.config.AccountDelay > 0 && i < len(accounts)-1 {
			if err := o.pause(ctx, o.config.AccountDelay); err != nil {
				logger.Warn("Batch interrupted: %v", err)
				runErr = err
				break
			}
		}
	}
}

// processAccount renews the account token and walks its feed. A panic is
// converted into an error so the batch can continue with the next account.
func (o *BatchOrchestrator) processAccount(
	ctx context.Context,
	budget *domain.RequestBudget,
	account *domain.Account,
) (inserted int, stopBatch bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	var tokenErr error
	if err := o.tokens.Ensure(ctx, budget, account); err != nil && !errors.Is(err, domain.ErrBudgetExhausted) {
		logger.Warn("Proceeding with current token for %s.", account.DisplayName())
		tokenErr = err
	}

	if !budget.Remaining() {
		return 0, true, tokenErr
	}

	res, err := o.walker.Walk(ctx, budget, account)
	if err != nil {
		return res.Inserted, false, err
	}
	if res.Stop == StopFetchError {
		return res.Inserted, false, errors.Join(tokenErr, errors.New("feed fetch failed"))
	}
	return res.Inserted, false, tokenErr
}

// seed creates configured accounts before the run, if a seeder is set.
func (o *BatchOrchestrator) seed(ctx context.Context) {
	o.mu.RLock()
	seeder, seeds := o.seeder, o.seeds
	o.mu.RUnlock()
	if seeder == nil || seeds == nil {
		return
	}

	created, err := seeder.Seed(ctx, seeds())
	if err != nil {
		logger.Error("Seeding accounts failed: %v", err)
	}
	if created > 0 {
		logger.Info("Seeded %d new accounts.", created)
	}
}

// finish completes the run and records it.
func (o *BatchOrchestrator) finish(ctx context.Context, budget *domain.RequestBudget, runErr error) {
	ended := o.now()

	o.mu.Lock()
	o.status.State = domain.BatchCompleted
	o.status.EndedAt = ended
	o.status.RequestsUsed = budget.Consumed()
	snapshot := *o.status
	o.running = false
	o.mu.Unlock()

	logger.Info("Batch run completed. Total requests: %d", budget.Consumed())

	if o.history == nil {
		return
	}

	result := &domain.TaskResult{
		TaskID:         domain.TaskIDInstagramSync,
		RunID:          snapshot.RunID,
		StartedAt:      snapshot.StartedAt,
		EndedAt:        ended,
		Success:        runErr == nil,
		ItemsProcessed: snapshot.PostsInserted,
		RequestsUsed:   snapshot.RequestsUsed,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	if err := o.history.RecordResult(ctx, result); err != nil {
		logger.Error("Failed to record run %s: %v", snapshot.RunID, err)
	}
	if err := o.history.PruneHistory(ctx, historyRetention); err != nil {
		logger.Error("Failed to prune run history: %v", err)
	}
}
