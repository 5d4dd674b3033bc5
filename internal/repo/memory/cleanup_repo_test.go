package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/cleanup"
)

func TestCleanupRepo_ClaimLifecycle(t *testing.T) {
	r := NewCleanupRepo()
	ctx := context.Background()

	task, err := r.Enqueue(ctx, "remote-1", "course delete")
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// duplicate enqueue keeps a single task
	again, _ := r.Enqueue(ctx, "remote-1", "course delete")
	if again.ID != task.ID {
		t.Fatalf("expected same task, got %s and %s", task.ID, again.ID)
	}

	claimed, err := r.ClaimNext(ctx, "w1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != cleanup.StatusProcessing || claimed.LockedBy == nil || *claimed.LockedBy != "w1" {
		t.Fatalf("unexpected claim: %+v", claimed)
	}

	if _, err := r.ClaimNext(ctx, "w2"); !errors.Is(err, cleanup.ErrNoTask) {
		t.Fatalf("processing task claimed twice: %v", err)
	}

	if err := r.Reschedule(ctx, task.ID, time.Now().Add(time.Hour), "boom"); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if _, err := r.ClaimNext(ctx, "w1"); !errors.Is(err, cleanup.ErrNoTask) {
		t.Fatalf("future task claimed early: %v", err)
	}

	if err := r.MarkDone(ctx, task.ID); err != nil {
		t.Fatalf("done: %v", err)
	}
	got, _ := r.Get(task.ID)
	if got.Status != cleanup.StatusDone || got.Attempts != 1 {
		t.Fatalf("unexpected final state: %+v", got)
	}

	if err := r.MarkDone(ctx, "missing"); !errors.Is(err, cleanup.ErrTaskNotFound) {
		t.Fatalf("expected ErrTaskNotFound, got %v", err)
	}
}
