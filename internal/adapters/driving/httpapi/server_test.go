package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driving"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockOrchestrator struct {
	mu        sync.Mutex
	startErr  error
	startCtx  context.Context
	starts    int
	status    *driving.SyncStatus
	history   []domain.TaskResult
	lastLimit int
}

func (m *mockOrchestrator) RunBatch(_ context.Context) (*driving.SyncStatus, error) {
	return m.status, nil
}

func (m *mockOrchestrator) Start(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
	m.startCtx = ctx
	if m.startErr != nil {
		return "", m.startErr
	}
	return fmt.Sprintf("run-%d", m.starts), nil
}

func (m *mockOrchestrator) Status(_ context.Context) (*driving.SyncStatus, error) {
	if m.status == nil {
		return &driving.SyncStatus{State: domain.BatchNotStarted}, nil
	}
	return m.status, nil
}

func (m *mockOrchestrator) History(_ context.Context, limit int) ([]domain.TaskResult, error) {
	m.lastLimit = limit
	return m.history, nil
}

type mockMedia struct {
	url string
	err error
}

func (m *mockMedia) RefreshMediaURL(_ context.Context, _ string) (string, error) {
	return m.url, m.err
}

func do(t *testing.T, s *Server, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	s.Handler().ServeHTTP(rec, req)

	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestRoot(t *testing.T) {
	s := NewServer(&mockOrchestrator{}, nil, 0)

	rec, body := do(t, s, http.MethodGet, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Connect3 Instagram Ingestion Service is running", body["status"])
}

func TestHealthz(t *testing.T) {
	s := NewServer(&mockOrchestrator{}, nil, 0)

	rec, body := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRunTask_Started(t *testing.T) {
	orch := &mockOrchestrator{}
	s := NewServer(orch, nil, time.Second)

	rec, body := do(t, s, http.MethodPost, "/run-task")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "started", body["status"])
	assert.Equal(t, "run-1", body["run_id"])
	assert.Equal(t, StartedMessage, body["message"])

	// The run context must survive the request's timeout.
	require.NotNil(t, orch.startCtx)
	_, hasDeadline := orch.startCtx.Deadline()
	assert.False(t, hasDeadline)
}

func TestRunTask_AlreadyRunning(t *testing.T) {
	s := NewServer(&mockOrchestrator{startErr: domain.ErrSyncInProgress}, nil, 0)

	rec, body := do(t, s, http.MethodPost, "/run-task")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_running", body["status"])
}

func TestRunTask_Error(t *testing.T) {
	s := NewServer(&mockOrchestrator{startErr: errors.New("boom")}, nil, 0)

	rec, body := do(t, s, http.MethodPost, "/run-task")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ErrorCodeInternal, errBody["code"])
}

func TestRunTask_WrongMethod(t *testing.T) {
	s := NewServer(&mockOrchestrator{}, nil, 0)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/run-task", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	orch := &mockOrchestrator{status: &driving.SyncStatus{
		RunID:             "run-9",
		State:             domain.BatchRunning,
		StartedAt:         started,
		AccountsTotal:     3,
		AccountsProcessed: 1,
		PostsInserted:     4,
		RequestsUsed:      12,
	}}
	s := NewServer(orch, nil, 0)

	rec, body := do(t, s, http.MethodGet, "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-9", body["run_id"])
	assert.Equal(t, "running", body["state"])
	assert.Equal(t, "2025-06-01T12:00:00Z", body["started_at"])
	assert.NotContains(t, body, "ended_at")
	assert.EqualValues(t, 4, body["posts_inserted"])
	assert.EqualValues(t, 12, body["requests_used"])
}

func TestStatus_NotStarted(t *testing.T) {
	s := NewServer(&mockOrchestrator{}, nil, 0)

	rec, body := do(t, s, http.MethodGet, "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not_started", body["state"])
	assert.NotContains(t, body, "run_id")
}

func TestRuns(t *testing.T) {
	orch := &mockOrchestrator{history: []domain.TaskResult{
		{RunID: "run-2", Success: false, Error: "list accounts: down"},
		{RunID: "run-1", Success: true, ItemsProcessed: 5, RequestsUsed: 9},
	}}
	s := NewServer(orch, nil, 0)

	rec, body := do(t, s, http.MethodGet, "/runs?limit=5")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, orch.lastLimit)

	runs, ok := body["runs"].([]any)
	require.True(t, ok)
	require.Len(t, runs, 2)
	first := runs[0].(map[string]any)
	assert.Equal(t, "run-2", first["run_id"])
	assert.Equal(t, "list accounts: down", first["error"])
	second := runs[1].(map[string]any)
	assert.EqualValues(t, 5, second["posts_inserted"])
}

func TestRuns_DefaultAndInvalidLimit(t *testing.T) {
	orch := &mockOrchestrator{}
	s := NewServer(orch, nil, 0)

	rec, body := do(t, s, http.MethodGet, "/runs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, DefaultHistoryLimit, orch.lastLimit)
	assert.Empty(t, body["runs"])

	for _, q := range []string{"0", "-1", "abc", "101"} {
		rec, _ = do(t, s, http.MethodGet, "/runs?limit="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", q)
	}
}

func TestRefreshMedia(t *testing.T) {
	tests := []struct {
		name   string
		media  *mockMedia
		status int
	}{
		{"success", &mockMedia{url: "https://cdn.example.com/a.jpg"}, http.StatusOK},
		{"missing post", &mockMedia{err: fmt.Errorf("get post: %w", domain.ErrNotFound)}, http.StatusNotFound},
		{"invalid", &mockMedia{err: domain.ErrInvalidInput}, http.StatusBadRequest},
		{"upstream", &mockMedia{err: errors.New("fetch media: timeout")}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&mockOrchestrator{}, tt.media, 0)

			rec, body := do(t, s, http.MethodPost, "/posts/m1/refresh-media")
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, "m1", body["media_id"])
				assert.Equal(t, "https://cdn.example.com/a.jpg", body["media_url"])
			}
		})
	}
}

func TestRefreshMedia_NotRegisteredWithoutRefresher(t *testing.T) {
	s := NewServer(&mockOrchestrator{}, nil, 0)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/posts/m1/refresh-media", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWithTimeout_SetsDeadline(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := withTimeout(time.Second, func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		c.Status(http.StatusNoContent)
	})

	g := gin.New()
	g.GET("/x", handler)
	rec := httptest.NewRecorder()
	g.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestListenAndServe_ShutsDownOnCancel(t *testing.T) {
	s := NewServer(&mockOrchestrator{}, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
