package driving

import (
	"context"
	"time"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
)

// SyncOrchestrator runs batch synchronisation of all accounts.
type SyncOrchestrator interface {
	// RunBatch runs one batch and blocks until it completes.
	// Returns domain.ErrSyncInProgress if another run is active.
	RunBatch(ctx context.Context) (*SyncStatus, error)

	// Start schedules a batch in the background and returns its run ID
	// without waiting. Returns domain.ErrSyncInProgress if another run is active.
	Start(ctx context.Context) (string, error)

	// Status returns the state of the current or most recent run.
	Status(ctx context.Context) (*SyncStatus, error)

	// History returns recent run results, most recent first.
	History(ctx context.Context, limit int) ([]domain.TaskResult, error)
}

// SyncStatus represents the state of a batch run.
type SyncStatus struct {
	// RunID identifies the run. Empty before the first run.
	RunID string

	// State is the lifecycle state of the run.
	State domain.BatchState

	// StartedAt is when the run started.
	StartedAt time.Time

	// EndedAt is when the run completed. Zero while running.
	EndedAt time.Time

	// AccountsTotal is the number of accounts loaded for the run.
	AccountsTotal int

	// AccountsProcessed is the number of accounts the run reached.
	AccountsProcessed int

	// AccountsFailed counts accounts whose processing reported an error.
	AccountsFailed int

	// PostsInserted is the number of new posts stored.
	PostsInserted int

	// RequestsUsed is the number of outbound calls consumed.
	RequestsUsed int

	// BudgetExhausted reports whether the run stopped at the request ceiling.
	BudgetExhausted bool
}

// Running reports whether the run is in progress.
func (s *SyncStatus) Running() bool {
	return s != nil && s.State == domain.BatchRunning
}
