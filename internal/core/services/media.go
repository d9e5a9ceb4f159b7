package services

import (
	"context"
	"fmt"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driving"
	"github.com/connect3/instagram-ingestor/internal/logger"
)

// Ensure MediaRefresher implements the interface.
var _ driving.MediaRefresher = (*MediaRefresher)(nil)

// MediaRefresher replaces the expired media URL of a stored post.
type MediaRefresher struct {
	accounts driven.AccountStore
	posts    driven.PostStore
	graph    driven.GraphClient
}

// NewMediaRefresher creates a media refresher.
func NewMediaRefresher(accounts driven.AccountStore, posts driven.PostStore, graph driven.GraphClient) *MediaRefresher {
	return &MediaRefresher{
		accounts: accounts,
		posts:    posts,
		graph:    graph,
	}
}

// RefreshMediaURL fetches the current media URL of a post, falling back to
// its permalink, stores it and returns it. It makes exactly one API call.
func (r *MediaRefresher) RefreshMediaURL(ctx context.Context, mediaID string) (string, error) {
	if mediaID == "" {
		return "", fmt.Errorf("%w: media id is required", domain.ErrInvalidInput)
	}

	post, err := r.posts.Get(ctx, mediaID)
	if err != nil {
		return "", fmt.Errorf("get post: %w", err)
	}

	account, err := r.accounts.GetByExternalID(ctx, post.ExternalUserID)
	if err != nil {
		return "", fmt.Errorf("get account: %w", err)
	}

	budget := domain.NewRequestBudget(1)
	if err := budget.Take(); err != nil {
		return "", err
	}

	item, err := r.graph.GetMedia(ctx, account.AccessToken, mediaID)
	if err != nil {
		return "", fmt.Errorf("fetch media: %w", err)
	}

	mediaURL := item.ResolvedMediaURL()
	if mediaURL == "" {
		return "", fmt.Errorf("%w: media %s has no url", domain.ErrNotFound, mediaID)
	}

	if err := r.posts.UpdateMediaURL(ctx, mediaID, mediaURL); err != nil {
		return "", fmt.Errorf("update post: %w", err)
	}

	logger.Info("Refreshed media URL for post %s.", mediaID)
	return mediaURL, nil
}
