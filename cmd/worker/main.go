package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/db"
	"github.com/geocoder89/coursehub/internal/imagehost"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/queue/worker"
	"github.com/geocoder89/coursehub/internal/repo/postgres"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// The worker drains the image cleanup queue. It needs postgres: with
// STORAGE=memory the queue lives inside the API process and nothing drains it.
func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("worker stopped with error", "err", err)
		os.Exit(1)
	}

	log.Info("worker shutdown complete")
}

func run(cfg config.Config, log *slog.Logger) error {
	if cfg.Storage != config.StoragePostgres {
		return fmt.Errorf("cleanup worker requires STORAGE=%s, got %q", config.StoragePostgres, cfg.Storage)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "coursehub-worker", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(tctx)
	}()

	pool, err := db.NewPool(ctx, cfg.DBURL)

	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}

	defer pool.Close()

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	var host imagehost.Host
	if cfg.ImageHost == config.ImageHostCloudinary {
		cld, err := imagehost.NewCloudinary(imagehost.CloudinaryConfig{
			CloudName:      cfg.CloudName,
			APIKey:         cfg.CloudAPIKey,
			APISecret:      cfg.CloudAPISecret,
			Folder:         cfg.CloudFolder,
			TimeoutSeconds: 30,
		})
		if err != nil {
			return err
		}
		host = cld
	} else {
		local, err := imagehost.NewLocal(cfg.ImageDir, cfg.PublicBaseURL)
		if err != nil {
			return err
		}
		host = local
	}

	hostname, _ := os.Hostname()
	workerID := hostname + "-" + strconv.Itoa(os.Getpid())

	w := worker.New(worker.Config{
		PollInterval:  cfg.WorkerPollInterval,
		WorkerID:      workerID,
		Concurrency:   2,
		ShutdownGrace: 10 * time.Second,
		LockTTL:       5 * time.Minute,
	}, postgres.NewCleanupRepo(pool, prom), imagehost.NewInstrumented(imagehost.NewBreaker(host, imagehost.BreakerConfig{}), prom), prom, log)

	healthSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WorkerPort),
		Handler:           w.HealthHandler(pool, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("worker health server starting", "port", cfg.WorkerPort)
		if err := healthSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("worker health server failed", "err", err)
		}
	}()

	log.Info("worker has started", "worker_id", workerID)

	runErr := w.Run(ctx)

	sctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(sctx)

	return runErr
}
