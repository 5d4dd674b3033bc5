package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/cleanup"
	"github.com/geocoder89/coursehub/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRemover struct {
	mu    sync.Mutex
	err   error
	calls []string
}

func (f *fakeRemover) Remove(_ context.Context, remoteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, remoteID)
	return f.err
}

func (f *fakeRemover) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestWorker(repo CleanupRepository, images ImageRemover) *Worker {
	w := New(Config{WorkerID: "test", PollInterval: 5 * time.Millisecond}, repo, images, nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.backoff = func(int) time.Duration { return 0 }
	return w
}

func TestProcessOne_EmptyQueue(t *testing.T) {
	w := newTestWorker(memory.NewCleanupRepo(), &fakeRemover{})

	processed, err := w.ProcessOne(context.Background())
	if err != nil || processed {
		t.Fatalf("expected nothing processed, got processed=%v err=%v", processed, err)
	}
}

func TestProcessOne_RemovesAndMarksDone(t *testing.T) {
	repo := memory.NewCleanupRepo()
	images := &fakeRemover{}
	w := newTestWorker(repo, images)

	task, _ := repo.Enqueue(context.Background(), "img-1", "course deleted")

	processed, err := w.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("processed=%v err=%v", processed, err)
	}

	got, _ := repo.Get(task.ID)
	if got.Status != cleanup.StatusDone {
		t.Fatalf("expected done, got %s", got.Status)
	}
	if len(images.calls) != 1 || images.calls[0] != "img-1" {
		t.Fatalf("unexpected remove calls: %v", images.calls)
	}
}

func TestProcessOne_RetriesThenGivesUp(t *testing.T) {
	repo := memory.NewCleanupRepo()
	images := &fakeRemover{err: errors.New("host down")}
	w := newTestWorker(repo, images)

	task, _ := repo.Enqueue(context.Background(), "img-1", "course deleted")

	for i := 0; i < cleanup.DefaultMaxAttempts; i++ {
		processed, err := w.ProcessOne(context.Background())
		if err != nil || !processed {
			t.Fatalf("attempt %d: processed=%v err=%v", i+1, processed, err)
		}

		got, _ := repo.Get(task.ID)
		want := cleanup.StatusPending
		if i == cleanup.DefaultMaxAttempts-1 {
			want = cleanup.StatusFailed
		}
		if got.Status != want || got.Attempts != i+1 {
			t.Fatalf("attempt %d: status=%s attempts=%d", i+1, got.Status, got.Attempts)
		}
		if got.LastError == nil || *got.LastError != "host down" {
			t.Fatalf("attempt %d: last error not recorded", i+1)
		}
	}

	if processed, _ := w.ProcessOne(context.Background()); processed {
		t.Fatalf("failed task claimed again")
	}
	if images.count() != cleanup.DefaultMaxAttempts {
		t.Fatalf("expected %d remove calls, got %d", cleanup.DefaultMaxAttempts, images.count())
	}
}

func TestProcessOne_RescheduleHonoursBackoff(t *testing.T) {
	repo := memory.NewCleanupRepo()
	w := newTestWorker(repo, &fakeRemover{err: errors.New("host down")})
	w.backoff = func(int) time.Duration { return time.Hour }

	_, _ = repo.Enqueue(context.Background(), "img-1", "course deleted")

	if processed, _ := w.ProcessOne(context.Background()); !processed {
		t.Fatalf("expected first attempt")
	}
	if processed, _ := w.ProcessOne(context.Background()); processed {
		t.Fatalf("task claimed before its retry time")
	}
}

func TestRun_DrainsQueueAndStops(t *testing.T) {
	repo := memory.NewCleanupRepo()
	images := &fakeRemover{}
	w := newTestWorker(repo, images)
	w.cfg.Concurrency = 3

	for _, id := range []string{"a", "b", "c", "d"} {
		_, _ = repo.Enqueue(context.Background(), id, "test")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for (images.count() < 4 || !w.Ready()) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !w.Ready() {
		t.Fatalf("worker not ready while running")
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
	if images.count() != 4 {
		t.Fatalf("expected each image removed once, got %d calls", images.count())
	}
	if w.Ready() {
		t.Fatalf("worker still ready after shutdown")
	}
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	w := newTestWorker(memory.NewCleanupRepo(), &fakeRemover{})

	var dbErr error
	h := w.HealthHandler(pingFunc(func(context.Context) error { return dbErr }), nil)

	get := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	if code := get("/healthz"); code != http.StatusOK {
		t.Fatalf("healthz: %d", code)
	}
	if code := get("/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before start: %d", code)
	}

	w.setReady(true)
	if code := get("/readyz"); code != http.StatusOK {
		t.Fatalf("readyz when ready: %d", code)
	}

	dbErr = errors.New("down")
	if code := get("/readyz"); code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with db down: %d", code)
	}
}

func TestExponentialBackoff(t *testing.T) {
	cases := []struct {
		attempt  int
		min, max time.Duration
	}{
		{0, 2 * time.Second, 2*time.Second + 250*time.Millisecond},
		{2, 8 * time.Second, 8*time.Second + 250*time.Millisecond},
		{20, 5 * time.Minute, 5*time.Minute + 250*time.Millisecond},
		{-1, 2 * time.Second, 2*time.Second + 250*time.Millisecond},
	}

	for _, tc := range cases {
		got := ExponentialBackoff(tc.attempt)
		if got < tc.min || got >= tc.max {
			t.Fatalf("attempt %d: %s not in [%s, %s)", tc.attempt, got, tc.min, tc.max)
		}
	}
}
