package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driving"
	"github.com/connect3/instagram-ingestor/internal/logger"
)

// Response texts.
const (
	RootStatus     = "Connect3 Instagram Ingestion Service is running"
	StartedMessage = "Batch sync task has been triggered in the background"
	RunningMessage = "A batch sync task is already running"
)

// Defaults.
const (
	DefaultHandlerTimeout = 30 * time.Second
	DefaultHistoryLimit   = 20
	maxHistoryLimit       = 100
	shutdownTimeout       = 10 * time.Second
)

// Server serves the HTTP trigger.
type Server struct {
	orch           driving.SyncOrchestrator
	media          driving.MediaRefresher
	handlerTimeout time.Duration
	engine         *gin.Engine
}

// NewServer builds the router. media is optional; without it the
// refresh-media route is not registered.
func NewServer(orch driving.SyncOrchestrator, media driving.MediaRefresher, handlerTimeout time.Duration) *Server {
	if handlerTimeout <= 0 {
		handlerTimeout = DefaultHandlerTimeout
	}
	s := &Server{
		orch:           orch,
		media:          media,
		handlerTimeout: handlerTimeout,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. In-flight background runs are not waited for here.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP trigger listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery(), requestLogger())

	g.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": RootStatus})
	})
	g.GET("/healthz", healthHandler)

	g.POST("/run-task", withTimeout(s.handlerTimeout, s.runTask))
	g.GET("/status", withTimeout(s.handlerTimeout, s.status))
	g.GET("/runs", withTimeout(s.handlerTimeout, s.runs))

	if s.media != nil {
		g.POST("/posts/:media_id/refresh-media", withTimeout(s.handlerTimeout, s.refreshMedia))
	}

	return g
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func withTimeout(d time.Duration, fn gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		fn(c)
	}
}

// requestLogger logs each request at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) runTask(c *gin.Context) {
	logger.Info("Triggering background sync task...")

	// The run outlives the request.
	runID, err := s.orch.Start(context.WithoutCancel(c.Request.Context()))
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"status":  ErrorCodeConflict,
			"message": RunningMessage,
		})
	case err != nil:
		logger.Error("starting batch run: %v", err)
		JSONError(c, http.StatusInternalServerError, ErrorCodeInternal, err.Error())
	default:
		c.JSON(http.StatusAccepted, gin.H{
			"status":  "started",
			"run_id":  runID,
			"message": StartedMessage,
		})
	}
}

// statusResponse is the JSON form of a run status.
type statusResponse struct {
	RunID             string     `json:"run_id,omitempty"`
	State             string     `json:"state"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	AccountsTotal     int        `json:"accounts_total"`
	AccountsProcessed int        `json:"accounts_processed"`
	AccountsFailed    int        `json:"accounts_failed"`
	PostsInserted     int        `json:"posts_inserted"`
	RequestsUsed      int        `json:"requests_used"`
	BudgetExhausted   bool       `json:"budget_exhausted"`
}

func (s *Server) status(c *gin.Context) {
	st, err := s.orch.Status(c.Request.Context())
	if err != nil {
		JSONError(c, http.StatusInternalServerError, ErrorCodeInternal, err.Error())
		return
	}
	c.JSON(http.StatusOK, statusResponse{
		RunID:             st.RunID,
		State:             string(st.State),
		StartedAt:         optionalTime(st.StartedAt),
		EndedAt:           optionalTime(st.EndedAt),
		AccountsTotal:     st.AccountsTotal,
		AccountsProcessed: st.AccountsProcessed,
		AccountsFailed:    st.AccountsFailed,
		PostsInserted:     st.PostsInserted,
		RequestsUsed:      st.RequestsUsed,
		BudgetExhausted:   st.BudgetExhausted,
	})
}

// runResponse is the JSON form of a recorded run.
type runResponse struct {
	RunID         string    `json:"run_id,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	PostsInserted int       `json:"posts_inserted"`
	RequestsUsed  int       `json:"requests_used"`
}

func (s *Server) runs(c *gin.Context) {
	limit := DefaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			JSONError(c, http.StatusBadRequest, ErrorCodeValidation, "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	history, err := s.orch.History(c.Request.Context(), limit)
	if err != nil {
		JSONError(c, http.StatusInternalServerError, ErrorCodeInternal, err.Error())
		return
	}

	out := make([]runResponse, 0, len(history))
	for _, r := range history {
		out = append(out, runResponse{
			RunID:         r.RunID,
			StartedAt:     r.StartedAt,
			EndedAt:       r.EndedAt,
			Success:       r.Success,
			Error:         r.Error,
			PostsInserted: r.ItemsProcessed,
			RequestsUsed:  r.RequestsUsed,
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) refreshMedia(c *gin.Context) {
	mediaID := c.Param("media_id")

	url, err := s.media.RefreshMediaURL(c.Request.Context(), mediaID)
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		JSONError(c, http.StatusBadRequest, ErrorCodeValidation, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		JSONError(c, http.StatusNotFound, ErrorCodeNotFound, err.Error())
	case err != nil:
		JSONError(c, http.StatusBadGateway, ErrorCodeUpstream, err.Error())
	default:
		c.JSON(http.StatusOK, gin.H{"media_id": mediaID, "media_url": url})
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
