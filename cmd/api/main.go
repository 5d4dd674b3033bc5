package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/coursehub/internal/auth"
	"github.com/geocoder89/coursehub/internal/cache"
	"github.com/geocoder89/coursehub/internal/config"
	"github.com/geocoder89/coursehub/internal/db"
	"github.com/geocoder89/coursehub/internal/domain/principal"
	httpx "github.com/geocoder89/coursehub/internal/http"
	"github.com/geocoder89/coursehub/internal/http/handlers"
	"github.com/geocoder89/coursehub/internal/imagehost"
	"github.com/geocoder89/coursehub/internal/observability"
	"github.com/geocoder89/coursehub/internal/redisclient"
	"github.com/geocoder89/coursehub/internal/repo/memory"
	"github.com/geocoder89/coursehub/internal/repo/postgres"
	"github.com/geocoder89/coursehub/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, "coursehub-api", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := config.WithTimeout(5 * time.Second)
		defer cancel()
		_ = shutdownTracer(tctx)
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	hasher := security.NewHasher(cfg.BcryptCost)

	deps := httpx.Deps{
		Config:      cfg,
		UserTokens:  auth.NewManager(principal.KindUser, cfg.JWTUserSecret),
		AdminTokens: auth.NewManager(principal.KindAdmin, cfg.JWTAdminSecret),
		Hasher:      hasher,
		Prom:        prom,
		Gatherer:    reg,
		Ready:       map[string]handlers.Pinger{},
	}

	closeStores, err := wireStores(ctx, cfg, prom, log, &deps)
	if err != nil {
		return err
	}
	defer closeStores()

	if err := db.EnsureAdmin(ctx, deps.Admins, hasher, cfg, log); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()

		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pctx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}

		deps.Denylist = rdb
		deps.Ready["redis"] = rdb
		log.Info("logout revocation enabled", "redis", cfg.RedisAddr)
	}

	host, localDir, err := newImageHost(cfg)
	if err != nil {
		return err
	}
	deps.Images = imagehost.NewInstrumented(imagehost.NewBreaker(host, imagehost.BreakerConfig{}), prom)
	deps.LocalImagesDir = localDir

	router := httpx.NewRouter(log, deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.Storage, "image_host", cfg.ImageHost)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	log.Info("server shutting down")

	sctx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}

// wireStores fills the repository fields of d for the configured storage
// backend and returns its cleanup.
func wireStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger, d *httpx.Deps) (func(), error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")

		d.Users = memory.NewPrincipalsRepo(principal.KindUser)
		d.Admins = memory.NewPrincipalsRepo(principal.KindAdmin)
		d.Courses = memory.NewCoursesRepo()
		d.Purchases = memory.NewPurchasesRepo()
		d.Cleanup = memory.NewCleanupRepo()

		return func() {}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DBURL)
	if err != nil {
		return nil, fmt.Errorf("db connect failed: %w", err)
	}

	if err := db.Migrate(ctx, pool, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	d.Users = postgres.NewPrincipalsRepo(pool, prom, principal.KindUser)
	d.Admins = postgres.NewPrincipalsRepo(pool, prom, principal.KindAdmin)
	courses := postgres.NewCoursesRepo(pool, prom)
	d.Courses = courses
	d.PurchaseCourses = courses
	if cfg.CatalogCacheTTL > 0 {
		d.Courses = cache.NewCatalog(courses, cfg.CatalogCacheTTL)
	}
	d.Purchases = postgres.NewPurchasesRepo(pool, prom)
	d.Cleanup = postgres.NewCleanupRepo(pool, prom)
	d.Ready["db"] = pool

	return pool.Close, nil
}

func newImageHost(cfg config.Config) (imagehost.Host, string, error) {
	if cfg.ImageHost == config.ImageHostCloudinary {
		host, err := imagehost.NewCloudinary(imagehost.CloudinaryConfig{
			CloudName:      cfg.CloudName,
			APIKey:         cfg.CloudAPIKey,
			APISecret:      cfg.CloudAPISecret,
			Folder:         cfg.CloudFolder,
			TimeoutSeconds: 30,
		})
		if err != nil {
			return nil, "", err
		}
		return host, "", nil
	}

	local, err := imagehost.NewLocal(cfg.ImageDir, cfg.PublicBaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("local image host: %w", err)
	}

	return local, local.Dir(), nil
}
