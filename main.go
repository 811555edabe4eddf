package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rider-dispatch-system/api"
	"rider-dispatch-system/cache"
	"rider-dispatch-system/config"
	"rider-dispatch-system/database"
	"rider-dispatch-system/dispatch"
	"rider-dispatch-system/events"
	"rider-dispatch-system/geohash"
	"rider-dispatch-system/logging"
	"rider-dispatch-system/matching"
	"rider-dispatch-system/migration"
	"rider-dispatch-system/registry"
	"rider-dispatch-system/trips"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env is fine; the environment and config.yaml still apply.
	_ = godotenv.Load()

	// Initialize configuration
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logging.New("info").Error("load config", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	technique, err := geohash.ParseTechnique(cfg.Matching.Technique)
	if err != nil {
		log.Error("matching technique", "err", err)
		os.Exit(1)
	}

	reg := registry.New()
	opts := []dispatch.Option{
		dispatch.WithLogger(log),
		dispatch.WithMaxAttempts(cfg.Matching.MaxAttempts),
	}

	// Initialize database
	var repo *database.Repository
	if cfg.DB.Enabled {
		if cfg.DB.Migrate {
			if err := migration.RunMigrations(ctx, cfg.DB.DSN(), log); err != nil {
				log.Error("run migrations", "err", err)
				os.Exit(1)
			}
		}
		db, err := database.Open(ctx, cfg.DB)
		if err != nil {
			log.Error("open database", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		repo = database.NewRepository(db)
		opts = append(opts, dispatch.WithRecorder(repo))
	}

	// Initialize Redis
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Error("connect redis", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		opts = append(opts, dispatch.WithCache(cache.NewAvailabilityCache(rdb)))
	}

	publisher, err := events.New(ctx, cfg.Events)
	if err != nil {
		log.Error("events publisher", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn("close publisher", "err", err)
		}
	}()
	opts = append(opts, dispatch.WithPublisher(publisher))

	svc := dispatch.New(reg, matching.NewMatcher(reg, technique), trips.NewRunner(reg), opts...)

	if repo != nil {
		requesters, err := svc.RestoreRequesters(ctx, repo)
		if err != nil {
			log.Error("restore requesters", "err", err)
			os.Exit(1)
		}
		n, err := svc.RestoreDrivers(ctx, repo)
		if err != nil {
			log.Error("restore drivers", "err", err)
			os.Exit(1)
		}
		log.Info("state restored", "drivers", n, "requesters", requesters)
	}

	go svc.RunRetryLoop(ctx, cfg.Matching.RetryInterval)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.RegisterRoutes(api.NewHandler(svc, log)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", srv.Addr, "technique", technique)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "err", err)
	}
	log.Info("server stopped")
}
