package services

import (
	"context"
	"fmt"
	"time"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
	"github.com/connect3/instagram-ingestor/internal/logger"
)

// TokenManager keeps account access tokens renewed before they expire.
type TokenManager struct {
	accounts driven.AccountStore
	graph    driven.GraphClient
	now      func() time.Time
}

// NewTokenManager creates a token manager.
func NewTokenManager(accounts driven.AccountStore, graph driven.GraphClient) *TokenManager {
	return &TokenManager{
		accounts: accounts,
		graph:    graph,
		now:      time.Now,
	}
}

// Ensure renews the account's token when less than domain.TokenRefreshThreshold
// of its lifetime remains. A token that is still fresh causes no call.
//
// On success the new token and expiry are persisted and written back to
// account. Returns domain.ErrBudgetExhausted when the budget does not allow
// the call, and an error wrapping domain.ErrTokenRefreshFailed when the
// renewal fails. In both cases the account keeps its current token.
func (m *TokenManager) Ensure(ctx context.Context, budget *domain.RequestBudget, account *domain.Account) error {
	now := m.now()
	if !account.NeedsTokenRefresh(now) {
		logger.Debug("token for %s valid until %s", account.DisplayName(), account.TokenExpiresAt.Format(time.RFC3339))
		return nil
	}

	logger.Info("Refreshing token for account %s...", account.DisplayName())

	if err := budget.Take(); err != nil {
		logger.Warn("Rate limit reached, skipping refresh.")
		return err
	}

	grant, err := m.graph.RefreshToken(ctx, account.AccessToken)
	if err != nil {
		logger.Error("Failed to refresh token for %s: %v", account.DisplayName(), err)
		return fmt.Errorf("%w: %w", domain.ErrTokenRefreshFailed, err)
	}
	if grant.AccessToken == "" {
		logger.Error("Failed to refresh token for %s: empty token in response", account.DisplayName())
		return fmt.Errorf("%w: empty access token", domain.ErrTokenRefreshFailed)
	}

	expiresAt := grant.ExpiresAt(now)
	if err := m.accounts.UpdateToken(ctx, account.ID, grant.AccessToken, expiresAt, now); err != nil {
		return fmt.Errorf("%w: store token: %w", domain.ErrTokenRefreshFailed, err)
	}

	account.AccessToken = grant.AccessToken
	account.TokenExpiresAt = expiresAt
	account.UpdatedAt = now

	logger.Info("Token refreshed successfully for %s.", account.DisplayName())
	return nil
}
