package domain

import "time"

// Long-lived Graph API tokens live for 60 days.
const (
	// MaxTokenLifetime is the assumed full lifetime of an access token.
	MaxTokenLifetime = 60 * 24 * time.Hour

	// TokenRefreshThreshold is 10% of MaxTokenLifetime (6 days). Tokens
	// with less remaining lifetime are renewed.
	TokenRefreshThreshold = MaxTokenLifetime / 10
)

// NeedsTokenRefresh reports whether the account's token has less than
// TokenRefreshThreshold left at now. A zero expiry always needs a refresh.
func (a *Account) NeedsTokenRefresh(now time.Time) bool {
	return a.TokenExpiresAt.Sub(now) < TokenRefreshThreshold
}

// TokenGrant is the result of a successful token renewal.
type TokenGrant struct {
	// AccessToken is the renewed token.
	AccessToken string

	// ExpiresIn is the lifetime reported by the API. Zero when absent.
	ExpiresIn time.Duration
}

// Lifetime returns ExpiresIn, or MaxTokenLifetime when the API did not
// report one.
func (g TokenGrant) Lifetime() time.Duration {
	if g.ExpiresIn <= 0 {
		return MaxTokenLifetime
	}
	return g.ExpiresIn
}

// ExpiresAt returns the expiry of the granted token when issued at now.
func (g TokenGrant) ExpiresAt(now time.Time) time.Time {
	return now.Add(g.Lifetime())
}
