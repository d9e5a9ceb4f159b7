package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/connect3/instagram-ingestor/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
)

// DefaultPath is the database location used when none is configured.
const DefaultPath = "data/ingestor.db"

// timeLayout is the fixed-width UTC layout used for every stored time.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// maxWatermarkAttempts bounds the compare-and-set retries in AdvanceWatermark.
const maxWatermarkAttempts = 5

var errWatermarkContention = errors.New("watermark changed concurrently")

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens the database at path, creating it and its parent
// directory when missing. An empty path uses DefaultPath.
func NewStore(path string) (*Store, error) {
	path = strings.TrimPrefix(path, "sqlite://")
	if path == "" {
		path = DefaultPath
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: path,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AccountStore returns an AccountStore interface backed by this store.
func (s *Store) AccountStore() driven.AccountStore {
	return &accountStore{store: s}
}

// PostStore returns a PostStore interface backed by this store.
func (s *Store) PostStore() driven.PostStore {
	return &postStore{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// applyMigration runs one migration and records its version atomically.
func (s *Store) applyMigration(version int, content string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(content); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Account Store ====================

// accountStore implements driven.AccountStore.
type accountStore struct {
	store *Store
}

var _ driven.AccountStore = (*accountStore)(nil)

const accountColumns = `id, ig_user_id, account_name, access_token, token_expires_at,
	last_synced_at, priority, created_at, updated_at`

// ListForSync returns accounts in processing order.
func (s *accountStore) ListForSync(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+accountColumns+`
		FROM instagram_accounts
		ORDER BY priority ASC, last_synced_at ASC NULLS FIRST, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account //nolint:prealloc // size unknown from query
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}

	return accounts, nil
}

// Get retrieves an account by ID.
func (s *accountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM instagram_accounts WHERE id = ?
	`, id)
	return scanAccount(row)
}

// GetByExternalID retrieves an account by Instagram user id.
func (s *accountStore) GetByExternalID(ctx context.Context, externalUserID string) (*domain.Account, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+` FROM instagram_accounts WHERE ig_user_id = ?
	`, externalUserID)
	return scanAccount(row)
}

// Create inserts a new account.
func (s *accountStore) Create(ctx context.Context, account *domain.Account) error {
	if account == nil || account.ID == "" || account.ExternalUserID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO instagram_accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, account.ID, account.ExternalUserID, account.Name, account.AccessToken,
		formatTime(account.TokenExpiresAt), formatTimePtr(account.LastSyncedAt),
		account.Priority, formatTime(account.CreatedAt), formatTime(account.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

// UpdateToken stores a renewed token.
func (s *accountStore) UpdateToken(ctx context.Context, id, accessToken string, expiresAt, updatedAt time.Time) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE instagram_accounts
		SET access_token = ?, token_expires_at = ?, updated_at = ?
		WHERE id = ?
	`, accessToken, formatTime(expiresAt), formatTime(updatedAt), id)
	if err != nil {
		return fmt.Errorf("updating token: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AdvanceWatermark moves last_synced_at forward only. The comparison is done
// on parsed times; a stored value that does not parse counts as absent.
func (s *accountStore) AdvanceWatermark(ctx context.Context, id string, watermark, updatedAt time.Time) (bool, error) {
	for attempt := 0; attempt < maxWatermarkAttempts; attempt++ {
		var current sql.NullString
		err := s.store.db.QueryRowContext(ctx,
			"SELECT last_synced_at FROM instagram_accounts WHERE id = ?", id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrNotFound
		}
		if err != nil {
			return false, fmt.Errorf("reading watermark: %w", err)
		}

		if current.Valid {
			if stored, perr := domain.ParseTimestamp(current.String); perr == nil && !watermark.After(stored) {
				return false, nil
			}
		}

		// Compare-and-set against the raw value read above.
		result, err := s.store.db.ExecContext(ctx, `
			UPDATE instagram_accounts
			SET last_synced_at = ?, updated_at = ?
			WHERE id = ? AND last_synced_at IS ?
		`, formatTime(watermark), formatTime(updatedAt), id, current)
		if err != nil {
			return false, fmt.Errorf("advancing watermark: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("checking rows affected: %w", err)
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, fmt.Errorf("advancing watermark: %w", errWatermarkContention)
}

// ==================== Post Store ====================

// postStore implements driven.PostStore.
type postStore struct {
	store *Store
}

var _ driven.PostStore = (*postStore)(nil)

const postColumns = `media_id, ig_user_id, caption, media_type, media_url, permalink, timestamp, created_at`

// Upsert inserts a post unless its media id is already stored.
func (s *postStore) Upsert(ctx context.Context, post domain.Post) (bool, error) {
	if post.MediaID == "" {
		return false, domain.ErrInvalidInput
	}

	result, err := s.store.db.ExecContext(ctx, `
		INSERT INTO instagram_posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(media_id) DO NOTHING
	`, post.MediaID, post.ExternalUserID, post.Caption, post.MediaType, post.MediaURL,
		post.Permalink, formatTime(post.Timestamp), formatTime(post.CreatedAt))
	if err != nil {
		return false, fmt.Errorf("inserting post: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// Get retrieves a post by media id.
func (s *postStore) Get(ctx context.Context, mediaID string) (*domain.Post, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+postColumns+` FROM instagram_posts WHERE media_id = ?
	`, mediaID)
	return scanPost(row)
}

// UpdateMediaURL replaces a post's media URL.
func (s *postStore) UpdateMediaURL(ctx context.Context, mediaID, mediaURL string) error {
	result, err := s.store.db.ExecContext(ctx, `
		UPDATE instagram_posts SET media_url = ? WHERE media_id = ?
	`, mediaURL, mediaID)
	if err != nil {
		return fmt.Errorf("updating media url: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByAccount returns an account's newest posts first.
func (s *postStore) ListByAccount(ctx context.Context, externalUserID string, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		limit = -1 // No limit in SQLite
	}

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM instagram_posts
		WHERE ig_user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, externalUserID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post //nolint:prealloc // size unknown from query
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}

	return posts, nil
}

// ==================== Helper Functions ====================

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanAccount scans a single account row.
func scanAccount(row scanner) (*domain.Account, error) {
	var account domain.Account
	var tokenExpiresAt, createdAt, updatedAt string
	var lastSyncedAt sql.NullString

	if err := row.Scan(&account.ID, &account.ExternalUserID, &account.Name, &account.AccessToken,
		&tokenExpiresAt, &lastSyncedAt, &account.Priority, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	account.TokenExpiresAt = parseTime(tokenExpiresAt)
	account.CreatedAt = parseTime(createdAt)
	account.UpdatedAt = parseTime(updatedAt)
	if lastSyncedAt.Valid {
		// An unparseable watermark is treated as absent.
		account.LastSyncedAt = domain.ParseOptionalTimestamp(lastSyncedAt.String)
	}

	return &account, nil
}

// scanPost scans a single post row.
func scanPost(row scanner) (*domain.Post, error) {
	var post domain.Post
	var timestamp, createdAt string

	if err := row.Scan(&post.MediaID, &post.ExternalUserID, &post.Caption, &post.MediaType,
		&post.MediaURL, &post.Permalink, &timestamp, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning post: %w", err)
	}

	post.Timestamp = parseTime(timestamp)
	post.CreatedAt = parseTime(createdAt)
	return &post, nil
}

// formatTime formats t in the fixed-width UTC storage layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// formatTimePtr formats an optional time, or returns nil.
func formatTimePtr(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return formatTime(*t)
}

// parseTime parses a stored time. Returns zero time if invalid.
func parseTime(s string) time.Time {
	t, err := domain.ParseTimestamp(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "constraint failed: UNIQUE")
}
