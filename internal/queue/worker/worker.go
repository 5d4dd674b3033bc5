package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/coursehub/internal/domain/cleanup"
	"github.com/geocoder89/coursehub/internal/observability"
)

// CleanupRepository is the queue of remote images waiting to be released.
type CleanupRepository interface {
	ClaimNext(ctx context.Context, workerID string) (cleanup.Task, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	RequeueStale(ctx context.Context, lockTTL time.Duration) (int64, error)
}

// ImageRemover is the part of the image host the worker needs.
type ImageRemover interface {
	Remove(ctx context.Context, remoteID string) error
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	Concurrency   int
	ShutdownGrace time.Duration
	LockTTL       time.Duration
	RemoveTimeout time.Duration
}

type Worker struct {
	cfg    Config
	repo   CleanupRepository
	images ImageRemover
	prom   *observability.Prom
	log    *slog.Logger

	backoff func(attempt int) time.Duration

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo CleanupRepository, images ImageRemover, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.RemoveTimeout <= 0 {
		cfg.RemoveTimeout = 30 * time.Second
	}

	return &Worker{
		cfg:     cfg,
		repo:    repo,
		images:  images,
		prom:    prom,
		log:     log,
		backoff: ExponentialBackoff,
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

// Run polls the queue with cfg.Concurrency loops until ctx is cancelled, then
// waits up to ShutdownGrace for in-flight removals.
func (w *Worker) Run(ctx context.Context) error {
	if n, err := w.repo.RequeueStale(ctx, w.cfg.LockTTL); err != nil {
		w.log.WarnContext(ctx, "requeue stale cleanup tasks failed", "err", err)
	} else if n > 0 {
		w.log.InfoContext(ctx, "requeued stale cleanup tasks", "count", n)
	}

	// in-flight removals keep running after ctx is cancelled, bounded by the grace period
	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, workCtx)
		}()
	}

	w.setReady(true)
	w.log.InfoContext(ctx, "cleanup worker started", "worker_id", w.cfg.WorkerID, "concurrency", w.cfg.Concurrency)

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("cleanup worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(w.cfg.ShutdownGrace):
		cancelWork()
		<-done
		return errors.New("cleanup worker shutdown grace exceeded")
	}
}

func (w *Worker) loop(stop, workCtx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop.Done():
			return
		case <-ticker.C:
		}

		// drain everything due before sleeping again
		for {
			if stop.Err() != nil {
				return
			}

			processed, err := w.ProcessOne(workCtx)
			if err != nil {
				w.log.Error("cleanup step failed", "err", err)
			}
			if !processed {
				break
			}
		}
	}
}
