package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/connect3/instagram-ingestor/internal/adapters/driven/storage/memory"
	"github.com/connect3/instagram-ingestor/internal/adapters/driven/storage/postgres"
	"github.com/connect3/instagram-ingestor/internal/adapters/driven/storage/sqlite"
	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
)

// Store groups the persistence ports behind one handle.
type Store interface {
	AccountStore() driven.AccountStore
	PostStore() driven.PostStore
	SchedulerStore() driven.SchedulerStore
	Ping(ctx context.Context) error
	Close() error
}

// Backend names a storage implementation.
type Backend string

// Storage backends.
const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// BackendFor picks the backend for a database URL. postgres:// and
// postgresql:// select Postgres, "memory:" selects the in-memory store and
// anything else is treated as a SQLite path.
func BackendFor(dsn string) Backend {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return BackendPostgres
	case dsn == "memory:" || dsn == "memory://":
		return BackendMemory
	default:
		return BackendSQLite
	}
}

// OpenStore opens the store for dsn.
func OpenStore(ctx context.Context, dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%w: empty database url", domain.ErrInvalidInput)
	}

	switch BackendFor(dsn) {
	case BackendPostgres:
		s, err := postgres.New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendMemory:
		return newMemoryStore(), nil
	default:
		s, err := sqlite.NewStore(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// memoryStore adapts the in-memory stores to Store.
type memoryStore struct {
	accounts  *memory.AccountStore
	posts     *memory.PostStore
	scheduler *memory.SchedulerStore
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts:  memory.NewAccountStore(),
		posts:     memory.NewPostStore(),
		scheduler: memory.NewSchedulerStore(),
	}
}

func (m *memoryStore) AccountStore() driven.AccountStore     { return m.accounts }
func (m *memoryStore) PostStore() driven.PostStore           { return m.posts }
func (m *memoryStore) SchedulerStore() driven.SchedulerStore { return m.scheduler }
func (m *memoryStore) Ping(context.Context) error            { return nil }
func (m *memoryStore) Close() error                          { return nil }

// closeAll closes each closer and joins the errors.
func closeAll(closers ...func() error) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
