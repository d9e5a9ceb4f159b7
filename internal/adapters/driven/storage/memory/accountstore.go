package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
)

// Ensure AccountStore implements the interface.
var _ driven.AccountStore = (*AccountStore)(nil)

// AccountStore is an in-memory implementation of driven.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		accounts: make(map[string]domain.Account),
	}
}

// ListForSync returns accounts by priority, then watermark with
// never-synced accounts first, then ID.
func (s *AccountStore) ListForSync(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		result = append(result, cloneAccount(account))
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.HasWatermark() != b.HasWatermark() {
			return !a.HasWatermark()
		}
		if a.HasWatermark() && !a.LastSyncedAt.Equal(*b.LastSyncedAt) {
			return a.LastSyncedAt.Before(*b.LastSyncedAt)
		}
		return a.ID < b.ID
	})

	return result, nil
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	account = cloneAccount(account)
	return &account, nil
}

// GetByExternalID retrieves an account by Instagram user id.
func (s *AccountStore) GetByExternalID(_ context.Context, externalUserID string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if account.ExternalUserID == externalUserID {
			account = cloneAccount(account)
			return &account, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Create inserts a new account.
func (s *AccountStore) Create(_ context.Context, account *domain.Account) error {
	if account == nil || account.ID == "" || account.ExternalUserID == "" {
		return domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[account.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.accounts {
		if existing.ExternalUserID == account.ExternalUserID {
			return domain.ErrAlreadyExists
		}
	}
	s.accounts[account.ID] = cloneAccount(*account)
	return nil
}

// UpdateToken stores a renewed token.
func (s *AccountStore) UpdateToken(_ context.Context, id, accessToken string, expiresAt, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	account.AccessToken = accessToken
	account.TokenExpiresAt = expiresAt.UTC()
	account.UpdatedAt = updatedAt.UTC()
	s.accounts[id] = account
	return nil
}

// AdvanceWatermark moves the watermark forward only.
func (s *AccountStore) AdvanceWatermark(_ context.Context, id string, watermark, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.accounts[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if account.HasWatermark() && !watermark.After(*account.LastSyncedAt) {
		return false, nil
	}
	mark := watermark.UTC()
	account.LastSyncedAt = &mark
	account.UpdatedAt = updatedAt.UTC()
	s.accounts[id] = account
	return true, nil
}

// cloneAccount copies the watermark pointer so callers cannot mutate
// stored state.
func cloneAccount(a domain.Account) domain.Account {
	if a.LastSyncedAt != nil {
		mark := *a.LastSyncedAt
		a.LastSyncedAt = &mark
	}
	return a
}
