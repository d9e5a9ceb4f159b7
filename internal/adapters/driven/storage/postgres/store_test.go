package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
)

// setupTestStore connects to POSTGRES_TEST_DSN. Rows are written under
// random ids so runs against a shared database do not collide.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_AccountLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	accounts := store.AccountStore()

	now := time.Now().UTC().Truncate(time.Microsecond)
	account := &domain.Account{
		ID:             uuid.NewString(),
		ExternalUserID: uuid.NewString(),
		Name:           "Test",
		AccessToken:    "token",
		TokenExpiresAt: now.Add(time.Hour),
		Priority:       domain.DefaultPriority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, accounts.Create(ctx, account))
	assert.ErrorIs(t, accounts.Create(ctx, account), domain.ErrAlreadyExists)

	got, err := accounts.GetByExternalID(ctx, account.ExternalUserID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.Nil(t, got.LastSyncedAt)

	require.NoError(t, accounts.UpdateToken(ctx, account.ID, "renewed", now.Add(48*time.Hour), now))

	mark := now.Add(-time.Hour)
	advanced, err := accounts.AdvanceWatermark(ctx, account.ID, mark, now)
	require.NoError(t, err)
	assert.True(t, advanced)

	advanced, err = accounts.AdvanceWatermark(ctx, account.ID, mark.Add(-time.Minute), now)
	require.NoError(t, err)
	assert.False(t, advanced)

	got, err = accounts.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "renewed", got.AccessToken)
	require.NotNil(t, got.LastSyncedAt)
	assert.True(t, mark.Equal(*got.LastSyncedAt))

	_, err = accounts.AdvanceWatermark(ctx, uuid.NewString(), mark, now)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_PostInsertOrIgnore(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	posts := store.PostStore()

	now := time.Now().UTC().Truncate(time.Microsecond)
	post := domain.Post{
		MediaID:        uuid.NewString(),
		ExternalUserID: uuid.NewString(),
		Caption:        "first",
		Timestamp:      now,
		CreatedAt:      now,
	}

	inserted, err := posts.Upsert(ctx, post)
	require.NoError(t, err)
	assert.True(t, inserted)

	post.Caption = "second"
	inserted, err = posts.Upsert(ctx, post)
	require.NoError(t, err)
	assert.False(t, inserted)

	require.NoError(t, posts.UpdateMediaURL(ctx, post.MediaID, "https://cdn.example.com/x.jpg"))

	list, err := posts.ListByAccount(ctx, post.ExternalUserID, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "first", list[0].Caption)
	assert.Equal(t, "https://cdn.example.com/x.jpg", list[0].MediaURL)
}

func TestStore_RunHistory(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	scheduler := store.SchedulerStore()

	taskID := "test-" + uuid.NewString()
	start := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, scheduler.RecordResult(ctx, &domain.TaskResult{
			TaskID:       taskID,
			RunID:        uuid.NewString(),
			StartedAt:    start.Add(time.Duration(i) * time.Minute),
			EndedAt:      start.Add(time.Duration(i)*time.Minute + time.Second),
			Success:      true,
			RequestsUsed: i,
		}))
	}

	require.NoError(t, scheduler.PruneHistory(ctx, 2))
	history, err := scheduler.GetTaskHistory(ctx, taskID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].RequestsUsed)

	require.NoError(t, scheduler.SaveTask(ctx, &domain.ScheduledTask{ID: taskID, Name: "Test", Interval: time.Hour, Enabled: true}))
	task, err := scheduler.GetTask(ctx, taskID)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, time.Hour, task.Interval)
	require.NoError(t, scheduler.DeleteTask(ctx, taskID))
}

func TestNullHelpers(t *testing.T) {
	assert.Nil(t, nullTime(time.Time{}))
	assert.NotNil(t, nullTime(time.Now()))
	assert.Nil(t, nullText(""))
	require.NotNil(t, nullText("x"))
	assert.Equal(t, "x", *nullText("x"))
}
