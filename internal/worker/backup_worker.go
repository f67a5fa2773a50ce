// Package worker exports spend logs to the backup sheet. It consumes
// queue messages for fresh entries and periodically sweeps the table
// for anything the queue missed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/sheets"
	"moneymanager/internal/storage"
)

// BackupRepo is the slice of the storage layer the worker needs.
type BackupRepo interface {
	GetSpendLog(ctx context.Context, id int64) (core.SpendLog, error)
	GetPendingBackup(ctx context.Context, limit int) ([]int64, error)
	MarkBackedUp(ctx context.Context, id int64) error
}

type BackupWorker struct {
	repo      BackupRepo
	target    sheets.LogAppender
	batchSize int
}

func NewBackupWorker(repo BackupRepo, target sheets.LogAppender, batchSize int) *BackupWorker {
	return &BackupWorker{
		repo:      repo,
		target:    target,
		batchSize: batchSize,
	}
}

// HandleBackupMessage exports the spend log named by one queue message.
// A deleted entry acks without export; export failures return an error
// so the message requeues.
func (w *BackupWorker) HandleBackupMessage(ctx context.Context, msg *amqp.SpendBackupMessage) error {
	entry, err := w.repo.GetSpendLog(ctx, msg.ID)
	if errors.Is(err, storage.ErrSpendLogNotFound) {
		slog.WarnContext(ctx, "Spend log vanished before backup", "spend_id", msg.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load spend log: %w", err)
	}

	return w.export(ctx, entry)
}

// ProcessPending sweeps entries the queue missed, up to one batch.
// Individual failures are logged and skipped so one bad row cannot
// stall the rest.
func (w *BackupWorker) ProcessPending(ctx context.Context) error {
	ids, err := w.repo.GetPendingBackup(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending backups: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Sweeping pending backups", "count", len(ids))

	for _, id := range ids {
		entry, err := w.repo.GetSpendLog(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load pending spend log", "spend_id", id, "error", err)
			continue
		}
		if err := w.export(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending spend log", "spend_id", id, "error", err)
			continue
		}
	}

	return nil
}

func (w *BackupWorker) export(ctx context.Context, entry core.SpendLog) error {
	ref, err := w.target.Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("append to backup target: %w", err)
	}

	// The append succeeded; a bookkeeping failure here means the sweep
	// exports the row again, which the sheet tolerates.
	if err := w.repo.MarkBackedUp(ctx, entry.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark spend log backed up",
			"spend_id", entry.ID, "error", err)
	}

	slog.InfoContext(ctx, "Spend log backed up",
		"spend_id", entry.ID,
		"sheet_ref", ref)
	return nil
}
