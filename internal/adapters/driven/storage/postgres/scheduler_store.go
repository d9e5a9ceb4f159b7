package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connect3/instagram-ingestor/internal/core/domain"
	"github.com/connect3/instagram-ingestor/internal/core/ports/driven"
)

type schedulerStore struct{ pool *pgxpool.Pool }

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const taskColumns = `id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled`

func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	task, err := scanTask(s.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM scheduled_tasks WHERE id=$1`, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return task, err
}

func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *task)
	}
	return out, rows.Err()
}

func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO scheduled_tasks (`+taskColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
  name=EXCLUDED.name, interval_seconds=EXCLUDED.interval_seconds,
  last_run=EXCLUDED.last_run, next_run=EXCLUDED.next_run,
  last_error=EXCLUDED.last_error, last_success=EXCLUDED.last_success,
  enabled=EXCLUDED.enabled`,
		task.ID, task.Name, int64(task.Interval.Seconds()),
		nullTime(task.LastRun), nullTime(task.NextRun), nullText(task.LastError),
		nullTime(task.LastSuccess), task.Enabled)
	if err != nil {
		return fmt.Errorf("saving task: %w", err)
	}
	return nil
}

func (s *schedulerStore) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM scheduled_tasks WHERE id=$1`, taskID); err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

func (s *schedulerStore) RecordResult(ctx context.Context, result *domain.TaskResult) error {
	if result == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO task_results (task_id, run_id, started_at, ended_at, success, error, items_processed, requests_used)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		result.TaskID, nullText(result.RunID), result.StartedAt, result.EndedAt,
		result.Success, nullText(result.Error), result.ItemsProcessed, result.RequestsUsed)
	if err != nil {
		return fmt.Errorf("recording result: %w", err)
	}
	return nil
}

func (s *schedulerStore) GetTaskHistory(ctx context.Context, taskID string, limit int) ([]domain.TaskResult, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.pool.Query(ctx, `
SELECT task_id, run_id, started_at, ended_at, success, error, items_processed, requests_used
FROM task_results
WHERE task_id=$1
ORDER BY started_at DESC, id DESC
LIMIT $2`, taskID, lim)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var out []domain.TaskResult
	for rows.Next() {
		var r domain.TaskResult
		var runID, errText *string
		if err := rows.Scan(&r.TaskID, &runID, &r.StartedAt, &r.EndedAt, &r.Success,
			&errText, &r.ItemsProcessed, &r.RequestsUsed); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		if runID != nil {
			r.RunID = *runID
		}
		if errText != nil {
			r.Error = *errText
		}
		r.StartedAt = r.StartedAt.UTC()
		r.EndedAt = r.EndedAt.UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *schedulerStore) PruneHistory(ctx context.Context, keep int) error {
	_, err := s.pool.Exec(ctx, `
DELETE FROM task_results
WHERE id IN (
  SELECT id FROM (
    SELECT id, ROW_NUMBER() OVER (PARTITION BY task_id ORDER BY started_at DESC, id DESC) AS rn
    FROM task_results
  ) ranked
  WHERE rn > $1
)`, keep)
	if err != nil {
		return fmt.Errorf("pruning history: %w", err)
	}
	return nil
}

func scanTask(row pgx.Row) (*domain.ScheduledTask, error) {
	var t domain.ScheduledTask
	var intervalSeconds int64
	var lastRun, nextRun, lastSuccess *time.Time
	var lastError *string

	if err := row.Scan(&t.ID, &t.Name, &intervalSeconds, &lastRun, &nextRun,
		&lastError, &lastSuccess, &t.Enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	t.Interval = time.Duration(intervalSeconds) * time.Second
	if lastRun != nil {
		t.LastRun = lastRun.UTC()
	}
	if nextRun != nil {
		t.NextRun = nextRun.UTC()
	}
	if lastSuccess != nil {
		t.LastSuccess = lastSuccess.UTC()
	}
	if lastError != nil {
		t.LastError = *lastError
	}
	return &t, nil
}
