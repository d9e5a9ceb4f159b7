package driven

import (
	"context"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
)

// PostStore persists ingested posts keyed by media id.
type PostStore interface {
	// Upsert stores a post with insert-or-ignore semantics: when a post with
	// the same media id exists, nothing is written and no error is returned.
	// The returned bool reports whether a new row was created.
	Upsert(ctx context.Context, post domain.Post) (bool, error)

	// Get retrieves a post by media id.
	// Returns domain.ErrNotFound if it does not exist.
	Get(ctx context.Context, mediaID string) (*domain.Post, error)

	// UpdateMediaURL replaces the stored media URL of a post.
	// Returns domain.ErrNotFound if the post does not exist.
	UpdateMediaURL(ctx context.Context, mediaID, mediaURL string) error

	// ListByAccount returns the newest posts of an account, newest first.
	ListByAccount(ctx context.Context, externalUserID string, limit int) ([]domain.Post, error)
}
