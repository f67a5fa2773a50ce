package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"

	"moneymanager/internal/amqp"
	"moneymanager/internal/config"
	applog "moneymanager/internal/log"
	"moneymanager/internal/sheets"
	"moneymanager/internal/sheets/google"
	"moneymanager/internal/sheets/memory"
	"moneymanager/internal/storage"
	"moneymanager/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentWorker)
	applog.SetDefault(logger)

	logger.Info("Starting backup-worker")

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

	// Without a spreadsheet id the worker still drains the queue, it
	// just exports into an in-memory sink. Useful for local runs.
	var target sheets.LogAppender
	if cfg.BackupSpreadsheetID != "" {
		client, err := google.New(ctx, cfg.BackupSpreadsheetID, cfg.BackupSheetName)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		target = client
		logger.Info("Google Sheets backup target initialized",
			"spreadsheet_id", cfg.BackupSpreadsheetID,
			"sheet", cfg.BackupSheetName)
	} else {
		target = memory.New()
		logger.Warn("No BACKUP_SPREADSHEET_ID set, exporting to in-memory sink")
	}

	backupWorker := worker.NewBackupWorker(repo, target, cfg.BackupBatchSize)

	// Catch up on anything missed while the worker was down.
	if err := backupWorker.ProcessPending(ctx); err != nil {
		logger.Error("Startup sweep failed", "error", err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}
	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.BackupSweepInterval),
		gocron.NewTask(func() {
			if err := backupWorker.ProcessPending(ctx); err != nil {
				logger.Error("Periodic sweep failed", "error", err)
			}
		}),
	)
	if err != nil {
		logger.Error("Failed to schedule sweep", "error", err)
		os.Exit(1)
	}
	scheduler.Start()
	defer func() { _ = scheduler.Shutdown() }()

	if cfg.AMQPURL == "" {
		logger.Info("No AMQP URL configured, running on periodic sweeps only")
		<-ctx.Done()
		logger.Info("Worker stopped")
		return
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPPrefsExchange, cfg.AMQPBackupQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	err = amqpClient.ConsumeSpendBackup(ctx, func(msg *amqp.SpendBackupMessage) error {
		handleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return backupWorker.HandleBackupMessage(handleCtx, msg)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
