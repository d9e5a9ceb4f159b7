package domain

import "time"

// DefaultPriority is the priority given to seeded accounts.
const DefaultPriority = 2

// Account is an Instagram account whose token and posts are synchronised.
type Account struct {
	// ID is the unique identifier (UUID).
	ID string

	// ExternalUserID is the Instagram user id used in Graph API paths.
	ExternalUserID string

	// Name is the display name of the account.
	Name string

	// AccessToken is the current long-lived Graph API token.
	AccessToken string

	// TokenExpiresAt is when AccessToken stops being valid.
	TokenExpiresAt time.Time

	// LastSyncedAt is the watermark: the timestamp of the newest post already
	// ingested. Nil means the account was never synced.
	LastSyncedAt *time.Time

	// Priority orders accounts within a run. Lower values go first.
	Priority int

	// CreatedAt is when the account was created.
	CreatedAt time.Time

	// UpdatedAt is when the account was last updated.
	UpdatedAt time.Time
}

// DisplayName returns the account name, falling back to the external user id.
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ExternalUserID
}

// HasWatermark reports whether the account has been synced before.
func (a *Account) HasWatermark() bool {
	return a.LastSyncedAt != nil && !a.LastSyncedAt.IsZero()
}

// SeedAccount is an account declared in configuration, to be created on
// startup when it does not exist yet.
type SeedAccount struct {
	ExternalUserID string
	AccessToken    string
}

// Profile is the subset of the Graph API user node the ingestor reads.
type Profile struct {
	ID       string
	Name     string
	Username string
}
