package domain

import "time"

// Post is a media item ingested from an account's feed.
// MediaID is unique across the store.
type Post struct {
	// MediaID is the Instagram media id.
	MediaID string

	// ExternalUserID is the Instagram user id of the owning account.
	ExternalUserID string

	// Caption is the post caption. Empty when the post has none.
	Caption string

	// MediaType is IMAGE, VIDEO or CAROUSEL_ALBUM.
	MediaType string

	// MediaURL points at the media file, or at the permalink when the API
	// did not return a media URL.
	MediaURL string

	// Permalink is the public URL of the post.
	Permalink string

	// Timestamp is when the post was published.
	Timestamp time.Time

	// CreatedAt is when the post was ingested.
	CreatedAt time.Time
}

// MediaItem is a post-like entry as returned by the feed endpoint.
type MediaItem struct {
	ID        string
	Caption   string
	MediaType string
	MediaURL  string
	Permalink string
	Timestamp string
}

// ResolvedMediaURL returns the media URL, or the permalink when it is missing.
func (m MediaItem) ResolvedMediaURL() string {
	if m.MediaURL != "" {
		return m.MediaURL
	}
	return m.Permalink
}

// MediaPage is one page of the feed.
type MediaPage struct {
	// Items are in feed order, newest first.
	Items []MediaItem

	// Next is the opaque link to the following page. Empty on the last page.
	Next string
}
