package driven

import (
	"context"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
)

// GraphClient issues calls to the Instagram Graph API.
// Every method performs exactly one outbound request.
type GraphClient interface {
	// MediaURL returns the first-page URL of a user's media feed.
	MediaURL(userID string) string

	// FetchMediaPage fetches one feed page. pageURL is either MediaURL or a
	// next-page link from a previous page.
	FetchMediaPage(ctx context.Context, accessToken, pageURL string) (*domain.MediaPage, error)

	// RefreshToken exchanges a long-lived token for a renewed one.
	RefreshToken(ctx context.Context, accessToken string) (domain.TokenGrant, error)

	// GetMedia fetches a single media item.
	GetMedia(ctx context.Context, accessToken, mediaID string) (*domain.MediaItem, error)

	// GetProfile fetches the user node of an account.
	GetProfile(ctx context.Context, accessToken, userID string) (*domain.Profile, error)
}
