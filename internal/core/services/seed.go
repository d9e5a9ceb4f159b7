package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driving"
	"github.com/connect3/instagram-ingestor/internal/logger"
)

// Ensure Seeder implements the interface.
var _ driving.AccountSeeder = (*Seeder)(nil)

// fallbackAccountName names seeded accounts whose profile cannot be read.
const fallbackAccountName = "Initial Account"

// Seeder creates configured accounts that are not stored yet.
type Seeder struct {
	accounts    driven.AccountStore
	graph       driven.GraphClient
	tokens      *TokenManager
	maxRequests int
	newID       func() string
	now         func() time.Time
}

// NewSeeder creates a seeder. maxRequests bounds the calls of one Seed call.
func NewSeeder(
	accounts driven.AccountStore,
	graph driven.GraphClient,
	tokens *TokenManager,
	maxRequests int,
) *Seeder {
	return &Seeder{
		accounts:    accounts,
		graph:       graph,
		tokens:      tokens,
		maxRequests: maxRequests,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// Seed creates every seed account that does not exist yet.
//
// A new account is named after its profile and stored with an expiry of now,
// so its token is exchanged for a long-lived one right away. Failures of one
// seed do not stop the others; they are joined into the returned error.
func (s *Seeder) Seed(ctx context.Context, seeds []domain.SeedAccount) (int, error) {
	budget := domain.NewRequestBudget(s.maxRequests)
	created := 0
	var errs []error

	for _, seed := range seeds {
		userID := strings.TrimSpace(seed.ExternalUserID)
		token := strings.TrimSpace(seed.AccessToken)
		if userID == "" || token == "" {
			continue
		}

		_, err := s.accounts.GetByExternalID(ctx, userID)
		if err == nil {
			logger.Debug("account %s already exists", userID)
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			errs = append(errs, fmt.Errorf("lookup %s: %w", userID, err))
			continue
		}

		now := s.now()
		account := &domain.Account{
			ID:             s.newID(),
			ExternalUserID: userID,
			Name:           s.profileName(ctx, budget, token, userID),
			AccessToken:    token,
			TokenExpiresAt: now,
			Priority:       domain.DefaultPriority,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := s.accounts.Create(ctx, account); err != nil {
			if errors.Is(err, domain.ErrAlreadyExists) {
				continue
			}
			errs = append(errs, fmt.Errorf("create %s: %w", userID, err))
			continue
		}
		created++
		logger.Info("Seeded account %s (%s).", account.Name, userID)

		if err := s.tokens.Ensure(ctx, budget, account); err != nil {
			logger.Warn("Initial token refresh for %s failed: %v", userID, err)
		}
	}

	return created, errors.Join(errs...)
}

func (s *Seeder) profileName(ctx context.Context, budget *domain.RequestBudget, token, userID string) string {
	if err := budget.Take(); err != nil {
		return fallbackAccountName
	}
	profile, err := s.graph.GetProfile(ctx, token, userID)
	if err != nil {
		logger.Warn("Could not fetch profile for %s: %v", userID, err)
		return fallbackAccountName
	}
	switch {
	case profile.Name != "":
		return profile.Name
	case profile.Username != "":
		return profile.Username
	default:
		return fallbackAccountName
	}
}
