package worker

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/cleanup"
)

// ProcessOne claims one due task and tries to remove its image. It reports
// whether a task was claimed.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	t, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, cleanup.ErrNoTask) {
			return false, nil
		}

		return false, err
	}

	removeCtx, cancel := context.WithTimeout(ctx, w.cfg.RemoveTimeout)
	err = w.images.Remove(removeCtx, t.RemoteID)
	cancel()

	if err != nil {
		return true, w.handleFailure(ctx, t, err)
	}

	if err := w.repo.MarkDone(ctx, t.ID); err != nil {
		return true, err
	}

	w.prom.ObserveCleanup("done")
	w.log.InfoContext(ctx, "remote image released", "task_id", t.ID, "remote_id", t.RemoteID)

	return true, nil
}

func (w *Worker) handleFailure(ctx context.Context, t cleanup.Task, cause error) error {
	msg := cause.Error()

	if t.Attempts+1 >= t.MaxAttempts {
		w.prom.ObserveCleanup("failed")
		w.log.ErrorContext(ctx, "remote image cleanup gave up",
			"task_id", t.ID, "remote_id", t.RemoteID, "attempts", t.Attempts+1, "err", cause)

		return w.repo.MarkFailed(ctx, t.ID, msg)
	}

	delay := w.backoff(t.Attempts)
	w.prom.ObserveCleanup("retry")
	w.log.WarnContext(ctx, "remote image cleanup failed, retrying",
		"task_id", t.ID, "remote_id", t.RemoteID, "attempt", t.Attempts+1, "retry_in", delay.String(), "err", cause)

	return w.repo.Reschedule(ctx, t.ID, time.Now().UTC().Add(delay), msg)
}
