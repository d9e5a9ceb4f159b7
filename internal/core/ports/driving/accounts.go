package driving

import (
	"context"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
)

// AccountSeeder creates configured accounts that do not exist yet.
type AccountSeeder interface {
	// Seed creates missing accounts and returns how many were created.
	Seed(ctx context.Context, seeds []domain.SeedAccount) (int, error)
}

// MediaRefresher re-fetches the media URL of a stored post.
// Stored media URLs are signed and expire after a while.
type MediaRefresher interface {
	// RefreshMediaURL updates and returns the post's media URL.
	RefreshMediaURL(ctx context.Context, mediaID string) (string, error)
}
