package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/cleanup"
)

// CleanupRepo is the in-process image cleanup queue used with STORAGE=memory.
type CleanupRepo struct {
	mu    sync.Mutex
	items map[string]*cleanup.Task
	order []string
}

func NewCleanupRepo() *CleanupRepo {
	return &CleanupRepo{
		items: make(map[string]*cleanup.Task),
	}
}

// Enqueue records remoteID once; a second enqueue of a pending id is a no-op.
func (r *CleanupRepo) Enqueue(_ context.Context, remoteID, reason string) (cleanup.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		t := r.items[id]
		if t.RemoteID == remoteID {
			if t.Status == cleanup.StatusDone || t.Status == cleanup.StatusFailed {
				t.Status = cleanup.StatusPending
				t.Attempts = 0
				t.RunAt = time.Now().UTC()
				t.Reason = reason
				t.UpdatedAt = t.RunAt
			}
			return *t, nil
		}
	}

	t := cleanup.New(remoteID, reason)
	r.items[t.ID] = &t
	r.order = append(r.order, t.ID)

	return t, nil
}

func (r *CleanupRepo) ClaimNext(_ context.Context, workerID string) (cleanup.Task, error) {
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.order {
		t := r.items[id]
		if t.Status != cleanup.StatusPending || t.RunAt.After(now) || t.Attempts >= t.MaxAttempts {
			continue
		}

		t.Status = cleanup.StatusProcessing
		t.LockedAt = &now
		t.LockedBy = &workerID
		t.UpdatedAt = now

		return *t, nil
	}

	return cleanup.Task{}, cleanup.ErrNoTask
}

func (r *CleanupRepo) MarkDone(_ context.Context, id string) error {
	return r.update(id, func(t *cleanup.Task) {
		t.Status = cleanup.StatusDone
		t.LastError = nil
	})
}

func (r *CleanupRepo) Reschedule(_ context.Context, id string, runAt time.Time, errMsg string) error {
	return r.update(id, func(t *cleanup.Task) {
		t.Status = cleanup.StatusPending
		t.Attempts++
		t.RunAt = runAt
		t.LastError = &errMsg
	})
}

func (r *CleanupRepo) MarkFailed(_ context.Context, id string, errMsg string) error {
	return r.update(id, func(t *cleanup.Task) {
		t.Status = cleanup.StatusFailed
		t.Attempts++
		t.LastError = &errMsg
	})
}

// RequeueStale returns processing tasks locked longer than lockTTL to pending.
func (r *CleanupRepo) RequeueStale(_ context.Context, lockTTL time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-lockTTL)

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, t := range r.items {
		if t.Status == cleanup.StatusProcessing && t.LockedAt != nil && t.LockedAt.Before(cutoff) {
			t.Status = cleanup.StatusPending
			t.LockedAt = nil
			t.LockedBy = nil
			t.UpdatedAt = time.Now().UTC()
			n++
		}
	}

	return n, nil
}

// Get returns a copy of the task, for tests and diagnostics.
func (r *CleanupRepo) Get(id string) (cleanup.Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok {
		return cleanup.Task{}, false
	}
	return *t, true
}

func (r *CleanupRepo) update(id string, fn func(t *cleanup.Task)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.items[id]
	if !ok {
		return cleanup.ErrTaskNotFound
	}

	fn(t)
	t.LockedAt = nil
	t.LockedBy = nil
	t.UpdatedAt = time.Now().UTC()

	return nil
}
