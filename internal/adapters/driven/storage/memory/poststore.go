package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
)

// Ensure PostStore implements the interface.
var _ driven.PostStore = (*PostStore)(nil)

// PostStore is an in-memory implementation of driven.PostStore.
type PostStore struct {
	mu    sync.RWMutex
	posts map[string]domain.Post
}

// NewPostStore creates a new in-memory post store.
func NewPostStore() *PostStore {
	return &PostStore{
		posts: make(map[string]domain.Post),
	}
}

// Upsert inserts a post unless its media id is already stored.
func (s *PostStore) Upsert(_ context.Context, post domain.Post) (bool, error) {
	if post.MediaID == "" {
		return false, domain.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[post.MediaID]; ok {
		return false, nil
	}
	s.posts[post.MediaID] = post
	return true, nil
}

// Get retrieves a post by media id.
func (s *PostStore) Get(_ context.Context, mediaID string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.posts[mediaID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &post, nil
}

// UpdateMediaURL replaces a post's media URL.
func (s *PostStore) UpdateMediaURL(_ context.Context, mediaID, mediaURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[mediaID]
	if !ok {
		return domain.ErrNotFound
	}
	post.MediaURL = mediaURL
	s.posts[mediaID] = post
	return nil
}

// ListByAccount returns an account's newest posts first. A limit of zero
// or less returns all of them.
func (s *PostStore) ListByAccount(_ context.Context, externalUserID string, limit int) ([]domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Post
	for _, post := range s.posts {
		if post.ExternalUserID == externalUserID {
			result = append(result, post)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Len returns the number of stored posts.
func (s *PostStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}
