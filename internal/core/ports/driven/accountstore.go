package driven

import (
	"context"
	"time"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
)

// AccountStore persists accounts, their tokens and their watermarks.
type AccountStore interface {
	// ListForSync returns all accounts ordered by priority ascending, then by
	// watermark ascending with never-synced accounts first.
	ListForSync(ctx context.Context) ([]domain.Account, error)

	// Get retrieves an account by ID.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*domain.Account, error)

	// GetByExternalID retrieves an account by its Instagram user id.
	// Returns domain.ErrNotFound if it does not exist.
	GetByExternalID(ctx context.Context, externalUserID string) (*domain.Account, error)

	// Create inserts a new account.
	// Returns domain.ErrAlreadyExists if the external user id is taken.
	Create(ctx context.Context, account *domain.Account) error

	// UpdateToken stores a renewed access token and its expiry.
	UpdateToken(ctx context.Context, id, accessToken string, expiresAt, updatedAt time.Time) error

	// AdvanceWatermark moves the account's watermark forward to watermark.
	// The update only applies when the stored watermark is absent or older;
	// the returned bool reports whether it did.
	AdvanceWatermark(ctx context.Context, id string, watermark, updatedAt time.Time) (bool, error)
}
