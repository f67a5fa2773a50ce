package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"moneymanager/internal/auth"
	"moneymanager/internal/backend"
	"moneymanager/internal/cache"
	"moneymanager/internal/config"
	apphttp "moneymanager/internal/http"
	applog "moneymanager/internal/log"
	"moneymanager/internal/services"
	"moneymanager/internal/storage"
)

func main() {
	// .env is for local development; missing files are fine.
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	transport, err := backend.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to initialize change feed transport", "error", err)
		os.Exit(1)
	}
	defer transport.Close()

	prefStore := services.NewPreferenceService(repo, transport.Publisher)

	authMgr := auth.NewManager(repo, auth.SessionDeps{
		Store: prefStore,
		Feed:  transport.Feed,
		Cache: cache.NewFileStore(cfg.PrefsCachePath),
	}, cfg.SessionTTL)
	defer authMgr.Close()

	var backup services.BackupPublisher
	if transport.Backup != nil {
		backup = transport.Backup
	}
	spendSvc := services.NewSpendService(repo, backup)

	srv := apphttp.NewServer(":"+cfg.Port, authMgr, spendSvc)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Hour),
		gocron.NewTask(func() {
			if err := authMgr.Reap(context.Background()); err != nil {
				logger.Error("Session reaping failed", "error", err)
			}
		}),
	)
	if err != nil {
		logger.Error("Failed to schedule session reaper", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
