package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/cleanup"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CleanupRepo is the durable queue of remote images whose removal failed.
type CleanupRepo struct {
	metered
	pool *pgxpool.Pool
}

func NewCleanupRepo(pool *pgxpool.Pool, prom *observability.Prom) *CleanupRepo {
	return &CleanupRepo{
		metered: metered{prom: prom},
		pool:    pool,
	}
}

const taskColumns = `id, remote_id, reason, status, attempts, max_attempts,
	run_at, locked_at, locked_by, last_error, created_at, updated_at`

func scanTask(row pgx.Row) (cleanup.Task, error) {
	var (
		t      cleanup.Task
		status string
	)

	err := row.Scan(
		&t.ID, &t.RemoteID, &t.Reason, &status, &t.Attempts, &t.MaxAttempts,
		&t.RunAt, &t.LockedAt, &t.LockedBy, &t.LastError, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return cleanup.Task{}, err
	}

	t.Status = cleanup.Status(status)
	return t, nil
}

// Enqueue records remoteID once. Re-enqueueing a finished task makes it
// pending again; a pending or processing one is left alone.
func (r *CleanupRepo) Enqueue(ctx context.Context, remoteID, reason string) (cleanup.Task, error) {
	t := cleanup.New(remoteID, reason)

	var (
		out cleanup.Task
		err error
	)

	err = r.observe("cleanup.enqueue", func() error {
		out, err = scanTask(r.pool.QueryRow(ctx, `
			INSERT INTO image_cleanup_tasks (id, remote_id, reason, status, attempts, max_attempts, run_at, created_at, updated_at)
			VALUES ($1,$2,$3,$4,0,$5,$6,$7,$7)
			ON CONFLICT ON CONSTRAINT image_cleanup_remote_uniq DO UPDATE
			SET status     = CASE WHEN image_cleanup_tasks.status IN ('done','failed') THEN 'pending' ELSE image_cleanup_tasks.status END,
			    attempts   = CASE WHEN image_cleanup_tasks.status IN ('done','failed') THEN 0 ELSE image_cleanup_tasks.attempts END,
			    run_at     = CASE WHEN image_cleanup_tasks.status IN ('done','failed') THEN EXCLUDED.run_at ELSE image_cleanup_tasks.run_at END,
			    reason     = EXCLUDED.reason,
			    updated_at = NOW()
			RETURNING `+taskColumns,
			t.ID, t.RemoteID, t.Reason, string(t.Status), t.MaxAttempts, t.RunAt, t.CreatedAt,
		))
		return err
	})

	return out, err
}

// ClaimNext locks one ready task for workerID using SKIP LOCKED so several
// workers can poll the same table.
func (r *CleanupRepo) ClaimNext(ctx context.Context, workerID string) (cleanup.Task, error) {
	var (
		t   cleanup.Task
		err error
	)

	err = r.observe("cleanup.claim_next", func() error {
		t, err = scanTask(r.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM image_cleanup_tasks
			WHERE status = 'pending'
			  AND run_at <= NOW()
			  AND attempts < max_attempts
			ORDER BY run_at ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE image_cleanup_tasks
		SET status = 'processing',
		    locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING `+taskColumns,
			workerID,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cleanup.Task{}, cleanup.ErrNoTask
		}
		return cleanup.Task{}, err
	}

	return t, nil
}

func (r *CleanupRepo) MarkDone(ctx context.Context, id string) error {
	return r.exec(ctx, "cleanup.mark_done", `
		UPDATE image_cleanup_tasks
		SET status = 'done',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
}

func (r *CleanupRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	return r.exec(ctx, "cleanup.reschedule", `
		UPDATE image_cleanup_tasks
		SET status = 'pending',
		    attempts = attempts + 1,
		    run_at = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, runAt, errMsg)
}

func (r *CleanupRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.exec(ctx, "cleanup.mark_failed", `
		UPDATE image_cleanup_tasks
		SET status = 'failed',
		    attempts = attempts + 1,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, errMsg)
}

// RequeueStale returns processing tasks whose worker died to pending.
func (r *CleanupRepo) RequeueStale(ctx context.Context, lockTTL time.Duration) (int64, error) {
	secs := int64(lockTTL.Seconds())
	if secs <= 0 {
		secs = 30
	}

	var rows int64

	err := r.observe("cleanup.requeue_stale", func() error {
		tag, err := r.pool.Exec(ctx, `
		UPDATE image_cleanup_tasks
		SET status = 'pending',
		    locked_at = NULL,
		    locked_by = NULL,
		    updated_at = NOW()
		WHERE status = 'processing'
		  AND locked_at IS NOT NULL
		  AND locked_at < NOW() - ($1 * INTERVAL '1 second')
	`, secs)
		if err != nil {
			return err
		}
		rows = tag.RowsAffected()
		return nil
	})

	return rows, err
}

func (r *CleanupRepo) exec(ctx context.Context, op, sql string, args ...any) error {
	var tag pgconn.CommandTag

	err := r.observe(op, func() error {
		var err error
		tag, err = r.pool.Exec(ctx, sql, args...)
		return err
	})

	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return cleanup.ErrTaskNotFound
	}
	return nil
}
