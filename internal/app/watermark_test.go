package app

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect3/instagram-ingestor/internal/connectors/instagram"
	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/services"
)

// walkWithStoredWatermark walks one account whose last_synced_at column was
// written as raw text, and returns the watermark read back afterwards.
func walkWithStoredWatermark(t *testing.T, raw string) (services.WalkResult, *time.Time) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v24.0/1789/media", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"m2","media_type":"IMAGE","media_url":"https://cdn.example.com/m2.jpg","timestamp":"2025-03-02T10:00:00+0000"},
			{"id":"m1","media_type":"IMAGE","media_url":"https://cdn.example.com/m1.jpg","timestamp":"2025-03-01T10:00:00+0000"}
		]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "ingestor.db")
	store, err := OpenStore(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.AccountStore().Create(ctx, &domain.Account{
		ID:             "acc-1",
		ExternalUserID: "1789",
		Name:           "Connect3",
		AccessToken:    "token",
		TokenExpiresAt: now.Add(30 * 24 * time.Hour),
		CreatedAt:      now,
		UpdatedAt:      now,
	}))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("UPDATE instagram_accounts SET last_synced_at = ? WHERE id = 'acc-1'", raw)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	account, err := store.AccountStore().Get(ctx, "acc-1")
	require.NoError(t, err)

	graph := instagram.NewClient(instagram.Config{BaseURL: srv.URL + "/v24.0", Rate: -1})
	walker := services.NewPostWalker(store.AccountStore(), store.PostStore(), graph)
	res, err := walker.Walk(ctx, domain.NewRequestBudget(10), account)
	require.NoError(t, err)

	after, err := store.AccountStore().Get(ctx, "acc-1")
	require.NoError(t, err)
	return res, after.LastSyncedAt
}

func TestWalk_SQLite_UnparseableWatermarkIsReplaced(t *testing.T) {
	res, mark := walkWithStoredWatermark(t, "not a time")

	assert.Equal(t, 2, res.Inserted)
	require.NotNil(t, mark)
	assert.True(t, time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC).Equal(*mark))
}

func TestWalk_SQLite_OffsetWatermarkAdvances(t *testing.T) {
	// 2025-03-02T07:00:00Z, which sorts after m2 as text but is older.
	res, mark := walkWithStoredWatermark(t, "2025-03-02T12:00:00+05:00")

	assert.Equal(t, 1, res.Inserted)
	require.NotNil(t, mark)
	assert.True(t, time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC).Equal(*mark))
}
