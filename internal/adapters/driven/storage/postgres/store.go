package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
)

//go:embed schema.sql
var schema string

// uniqueViolation is the SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

// Store provides all driven stores over one connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to dsn and applies the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// AccountStore returns the account store.
func (s *Store) AccountStore() driven.AccountStore {
	return &accountStore{pool: s.pool}
}

// PostStore returns the post store.
func (s *Store) PostStore() driven.PostStore {
	return &postStore{pool: s.pool}
}

// SchedulerStore returns the scheduler store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{pool: s.pool}
}

// ==================== Account Store ====================

type accountStore struct{ pool *pgxpool.Pool }

var _ driven.AccountStore = (*accountStore)(nil)

const accountColumns = `id, ig_user_id, account_name, access_token, token_expires_at,
  last_synced_at, priority, created_at, updated_at`

func (s *accountStore) ListForSync(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+accountColumns+`
FROM instagram_accounts
ORDER BY priority ASC, last_synced_at ASC NULLS FIRST, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *account)
	}
	return out, rows.Err()
}

func (s *accountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM instagram_accounts WHERE id=$1`, id))
}

func (s *accountStore) GetByExternalID(ctx context.Context, externalUserID string) (*domain.Account, error) {
	return scanAccount(s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM instagram_accounts WHERE ig_user_id=$1`, externalUserID))
}

func (s *accountStore) Create(ctx context.Context, account *domain.Account) error {
	if account == nil || account.ID == "" || account.ExternalUserID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO instagram_accounts (`+accountColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		account.ID, account.ExternalUserID, account.Name, account.AccessToken,
		account.TokenExpiresAt, account.LastSyncedAt, account.Priority,
		account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("inserting account: %w", err)
	}
	return nil
}

func (s *accountStore) UpdateToken(ctx context.Context, id, accessToken string, expiresAt, updatedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE instagram_accounts
SET access_token=$2, token_expires_at=$3, updated_at=$4
WHERE id=$1`, id, accessToken, expiresAt, updatedAt)
	if err != nil {
		return fmt.Errorf("updating token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *accountStore) AdvanceWatermark(ctx context.Context, id string, watermark, updatedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE instagram_accounts
SET last_synced_at=$2, updated_at=$3
WHERE id=$1 AND (last_synced_at IS NULL OR last_synced_at < $2)`, id, watermark, updatedAt)
	if err != nil {
		return false, fmt.Errorf("advancing watermark: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM instagram_accounts WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking account: %w", err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// ==================== Post Store ====================

type postStore struct{ pool *pgxpool.Pool }

var _ driven.PostStore = (*postStore)(nil)

const postColumns = `media_id, ig_user_id, caption, media_type, media_url, permalink, timestamp, created_at`

func (s *postStore) Upsert(ctx context.Context, post domain.Post) (bool, error) {
	if post.MediaID == "" {
		return false, domain.ErrInvalidInput
	}
	tag, err := s.pool.Exec(ctx, `
INSERT INTO instagram_posts (`+postColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (media_id) DO NOTHING`,
		post.MediaID, post.ExternalUserID, post.Caption, post.MediaType,
		post.MediaURL, post.Permalink, post.Timestamp, post.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("inserting post: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *postStore) Get(ctx context.Context, mediaID string) (*domain.Post, error) {
	return scanPost(s.pool.QueryRow(ctx,
		`SELECT `+postColumns+` FROM instagram_posts WHERE media_id=$1`, mediaID))
}

func (s *postStore) UpdateMediaURL(ctx context.Context, mediaID, mediaURL string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE instagram_posts SET media_url=$2 WHERE media_id=$1`, mediaID, mediaURL)
	if err != nil {
		return fmt.Errorf("updating media url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *postStore) ListByAccount(ctx context.Context, externalUserID string, limit int) ([]domain.Post, error) {
	// LIMIT NULL means no limit.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
SELECT `+postColumns+`
FROM instagram_posts
WHERE ig_user_id=$1
ORDER BY timestamp DESC
LIMIT $2`, externalUserID, lim)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	var out []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *post)
	}
	return out, rows.Err()
}

// ==================== Helpers ====================

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var lastSynced *time.Time
	err := row.Scan(&a.ID, &a.ExternalUserID, &a.Name, &a.AccessToken,
		&a.TokenExpiresAt, &lastSynced, &a.Priority, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	a.TokenExpiresAt = a.TokenExpiresAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if lastSynced != nil {
		mark := lastSynced.UTC()
		a.LastSyncedAt = &mark
	}
	return &a, nil
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var p domain.Post
	err := row.Scan(&p.MediaID, &p.ExternalUserID, &p.Caption, &p.MediaType,
		&p.MediaURL, &p.Permalink, &p.Timestamp, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning post: %w", err)
	}
	p.Timestamp = p.Timestamp.UTC()
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// nullText maps the empty string to NULL.
func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
