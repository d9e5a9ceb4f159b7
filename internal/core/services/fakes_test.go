package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
)

// --- Fakes shared by the service tests ---

// fakeAccountStore implements driven.AccountStore in memory.
type fakeAccountStore struct {
	mu          sync.Mutex
	accounts    map[string]*domain.Account
	listErr     error
	updateErr   error
	advanceErr  error
	createErr   error
	tokenWrites int
}

func newFakeAccountStore(accounts ...domain.Account) *fakeAccountStore {
	s := &fakeAccountStore{accounts: make(map[string]*domain.Account)}
	for i := range accounts {
		a := accounts[i]
		s.accounts[a.ID] = &a
	}
	return s
}

func (s *fakeAccountStore) ListForSync(_ context.Context) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, *a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		ai, aj := out[i].LastSyncedAt, out[j].LastSyncedAt
		switch {
		case ai == nil && aj == nil:
			return out[i].ID < out[j].ID
		case ai == nil:
			return true
		case aj == nil:
			return false
		default:
			return ai.Before(*aj)
		}
	})
	return out, nil
}

func (s *fakeAccountStore) Get(_ context.Context, id string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeAccountStore) GetByExternalID(_ context.Context, externalUserID string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ExternalUserID == externalUserID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeAccountStore) Create(_ context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, a := range s.accounts {
		if a.ExternalUserID == account.ExternalUserID {
			return domain.ErrAlreadyExists
		}
	}
	cp := *account
	s.accounts[account.ID] = &cp
	return nil
}

func (s *fakeAccountStore) UpdateToken(_ context.Context, id, accessToken string, expiresAt, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	a, ok := s.accounts[id]
	if !ok {
		return domain.ErrNotFound
	}
	a.AccessToken = accessToken
	a.TokenExpiresAt = expiresAt
	a.UpdatedAt = updatedAt
	s.tokenWrites++
	return nil
}

func (s *fakeAccountStore) AdvanceWatermark(_ context.Context, id string, watermark, updatedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.advanceErr != nil {
		return false, s.advanceErr
	}
	a, ok := s.accounts[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if a.LastSyncedAt != nil && !watermark.After(*a.LastSyncedAt) {
		return false, nil
	}
	w := watermark
	a.LastSyncedAt = &w
	a.UpdatedAt = updatedAt
	return true, nil
}

func (s *fakeAccountStore) get(id string) domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.accounts[id]
}

// fakePostStore implements driven.PostStore in memory.
type fakePostStore struct {
	mu        sync.Mutex
	posts     map[string]domain.Post
	failIDs   map[string]bool
	updateErr error
}

func newFakePostStore(posts ...domain.Post) *fakePostStore {
	s := &fakePostStore{posts: make(map[string]domain.Post), failIDs: make(map[string]bool)}
	for _, p := range posts {
		s.posts[p.MediaID] = p
	}
	return s
}

func (s *fakePostStore) Upsert(_ context.Context, post domain.Post) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[post.MediaID] {
		return false, errors.New("disk full")
	}
	if _, ok := s.posts[post.MediaID]; ok {
		return false, nil
	}
	s.posts[post.MediaID] = post
	return true, nil
}

func (s *fakePostStore) Get(_ context.Context, mediaID string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[mediaID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *fakePostStore) UpdateMediaURL(_ context.Context, mediaID, mediaURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	p, ok := s.posts[mediaID]
	if !ok {
		return domain.ErrNotFound
	}
	p.MediaURL = mediaURL
	s.posts[mediaID] = p
	return nil
}

func (s *fakePostStore) ListByAccount(_ context.Context, externalUserID string, limit int) ([]domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Post
	for _, p := range s.posts {
		if p.ExternalUserID == externalUserID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakePostStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// fakeGraph implements driven.GraphClient with scripted responses.
// Every call is appended to calls as "<method> <argument>".
type fakeGraph struct {
	mu         sync.Mutex
	calls      []string
	pages      map[string]*domain.MediaPage
	pageErr    map[string]error
	grant      domain.TokenGrant
	refreshErr error
	profile    *domain.Profile
	profileErr error
	media      map[string]*domain.MediaItem
	mediaErr   error
	onFetch    func()
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{
		pages:   make(map[string]*domain.MediaPage),
		pageErr: make(map[string]error),
		media:   make(map[string]*domain.MediaItem),
		grant:   domain.TokenGrant{AccessToken: "renewed-token", ExpiresIn: 60 * 24 * time.Hour},
	}
}

func (g *fakeGraph) MediaURL(userID string) string {
	return "feed/" + userID
}

func (g *fakeGraph) FetchMediaPage(_ context.Context, accessToken, pageURL string) (*domain.MediaPage, error) {
	g.mu.Lock()
	g.calls = append(g.calls, "feed "+pageURL+" "+accessToken)
	page, ok := g.pages[pageURL]
	err := g.pageErr[pageURL]
	onFetch := g.onFetch
	g.mu.Unlock()

	if onFetch != nil {
		onFetch()
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return &domain.MediaPage{}, nil
	}
	return page, nil
}

func (g *fakeGraph) RefreshToken(_ context.Context, accessToken string) (domain.TokenGrant, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "refresh "+accessToken)
	if g.refreshErr != nil {
		return domain.TokenGrant{}, g.refreshErr
	}
	return g.grant, nil
}

func (g *fakeGraph) GetMedia(_ context.Context, accessToken, mediaID string) (*domain.MediaItem, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "media "+mediaID+" "+accessToken)
	if g.mediaErr != nil {
		return nil, g.mediaErr
	}
	item, ok := g.media[mediaID]
	if !ok {
		return nil, fmt.Errorf("media %s: %w", mediaID, domain.ErrNotFound)
	}
	return item, nil
}

func (g *fakeGraph) GetProfile(_ context.Context, accessToken, userID string) (*domain.Profile, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, "profile "+userID+" "+accessToken)
	if g.profileErr != nil {
		return nil, g.profileErr
	}
	if g.profile == nil {
		return &domain.Profile{ID: userID}, nil
	}
	return g.profile, nil
}

func (g *fakeGraph) callLog() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Ensure fakes implement interfaces
var (
	_ driven.AccountStore = (*fakeAccountStore)(nil)
	_ driven.PostStore    = (*fakePostStore)(nil)
	_ driven.GraphClient  = (*fakeGraph)(nil)
)

// fixedClock returns a clock frozen at t.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// item builds a feed record.
func item(id, ts string) domain.MediaItem {
	return domain.MediaItem{
		ID:        id,
		Caption:   "caption " + id,
		MediaType: "IMAGE",
		MediaURL:  "https://cdn.example.com/" + id + ".jpg",
		Permalink: "https://www.instagram.com/p/" + id,
		Timestamp: ts,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
