package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
)

var seedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestSeeder(store *fakeAccountStore, graph *fakeGraph, maxRequests int) *Seeder {
	tokens := NewTokenManager(store, graph)
	tokens.now = fixedClock(seedNow)
	s := NewSeeder(store, graph, tokens, maxRequests)
	s.now = fixedClock(seedNow)
	s.newID = func() string { return "acc-new" }
	return s
}

func TestSeeder_Seed_CreatesAccount(t *testing.T) {
	store := newFakeAccountStore()
	graph := newFakeGraph()
	graph.profile = &domain.Profile{ID: "1789", Name: "Connect3 Society", Username: "connect3"}
	s := newTestSeeder(store, graph, 10)

	created, err := s.Seed(context.Background(), []domain.SeedAccount{
		{ExternalUserID: "1789", AccessToken: "short-token"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	assert.Equal(t, []string{"profile 1789 short-token", "refresh short-token"}, graph.callLog())

	account := store.get("acc-new")
	assert.Equal(t, "1789", account.ExternalUserID)
	assert.Equal(t, "Connect3 Society", account.Name)
	assert.Equal(t, domain.DefaultPriority, account.Priority)
	assert.Equal(t, "renewed-token", account.AccessToken)
	assert.Equal(t, seedNow.Add(60*24*time.Hour), account.TokenExpiresAt)
	assert.Nil(t, account.LastSyncedAt)
	assert.Equal(t, seedNow, account.CreatedAt)
}

func TestSeeder_Seed_SkipsExisting(t *testing.T) {
	store := newFakeAccountStore(domain.Account{ID: "acc-1", ExternalUserID: "1789", AccessToken: "stored"})
	graph := newFakeGraph()
	s := newTestSeeder(store, graph, 10)

	created, err := s.Seed(context.Background(), []domain.SeedAccount{
		{ExternalUserID: "1789", AccessToken: "other"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Empty(t, graph.callLog())
	assert.Equal(t, "stored", store.get("acc-1").AccessToken)
}

func TestSeeder_Seed_SkipsIncompletePairs(t *testing.T) {
	store := newFakeAccountStore()
	graph := newFakeGraph()
	s := newTestSeeder(store, graph, 10)

	created, err := s.Seed(context.Background(), []domain.SeedAccount{
		{ExternalUserID: "1789"},
		{AccessToken: "token"},
		{ExternalUserID: "  ", AccessToken: "token"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.Empty(t, graph.callLog())
}

func TestSeeder_Seed_ProfileFallbacks(t *testing.T) {
	tests := []struct {
		name       string
		profile    *domain.Profile
		profileErr error
		budget     int
		want       string
	}{
		{"username when name is empty", &domain.Profile{Username: "connect3"}, nil, 10, "connect3"},
		{"empty profile", &domain.Profile{}, nil, 10, "Initial Account"},
		{"profile error", nil, errors.New("status 400"), 10, "Initial Account"},
		{"no budget for profile", &domain.Profile{Name: "unused"}, nil, 0, "Initial Account"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeAccountStore()
			graph := newFakeGraph()
			graph.profile = tt.profile
			graph.profileErr = tt.profileErr
			s := newTestSeeder(store, graph, tt.budget)

			created, err := s.Seed(context.Background(), []domain.SeedAccount{
				{ExternalUserID: "1789", AccessToken: "token"},
			})
			require.NoError(t, err)
			assert.Equal(t, 1, created)
			assert.Equal(t, tt.want, store.get("acc-new").Name)
		})
	}
}

func TestSeeder_Seed_RefreshFailureKeepsAccount(t *testing.T) {
	store := newFakeAccountStore()
	graph := newFakeGraph()
	graph.refreshErr = errors.New("status 400")
	s := newTestSeeder(store, graph, 10)

	created, err := s.Seed(context.Background(), []domain.SeedAccount{
		{ExternalUserID: "1789", AccessToken: "token"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	account := store.get("acc-new")
	assert.Equal(t, "token", account.AccessToken)
	assert.Equal(t, seedNow, account.TokenExpiresAt)
}

func TestSeeder_Seed_CreateFailure(t *testing.T) {
	store := newFakeAccountStore()
	store.createErr = errors.New("read-only database")
	s := newTestSeeder(store, newFakeGraph(), 10)

	created, err := s.Seed(context.Background(), []domain.SeedAccount{
		{ExternalUserID: "1789", AccessToken: "token"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read-only database")
	assert.Equal(t, 0, created)
}
