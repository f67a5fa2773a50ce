package services

import (
	"context"
	"fmt"
	"log/slog"

	"moneymanager/internal/core"
)

// SpendRepo is the slice of the storage layer the spend service needs.
type SpendRepo interface {
	CreateSpendLog(ctx context.Context, s core.SpendLog) (int64, error)
	ListSpendLogs(ctx context.Context, userID string, year, month int) ([]core.SpendLog, error)
	MonthSummary(ctx context.Context, userID string, year, month int) (core.MonthSummary, error)
}

// BackupPublisher enqueues a saved spend log for export by the backup
// worker.
type BackupPublisher interface {
	PublishSpendBackup(ctx context.Context, id int64) error
}

// SpendService saves spend logs and queues them for backup.
type SpendService struct {
	repo   SpendRepo
	backup BackupPublisher
}

func NewSpendService(repo SpendRepo, backup BackupPublisher) *SpendService {
	return &SpendService{repo: repo, backup: backup}
}

// Create validates and saves a spend log, then enqueues it for backup.
// A queue failure does not fail the request; the sweep picks the entry
// up later.
func (s *SpendService) Create(ctx context.Context, entry core.SpendLog) (int64, error) {
	if err := entry.Validate(); err != nil {
		return 0, fmt.Errorf("validate spend log: %w", err)
	}

	id, err := s.repo.CreateSpendLog(ctx, entry)
	if err != nil {
		return 0, fmt.Errorf("save spend log: %w", err)
	}

	if s.backup != nil {
		if err := s.backup.PublishSpendBackup(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to publish backup message",
				"spend_id", id, "error", err)
		}
	}

	return id, nil
}

func (s *SpendService) List(ctx context.Context, userID string, year, month int) ([]core.SpendLog, error) {
	return s.repo.ListSpendLogs(ctx, userID, year, month)
}

func (s *SpendService) Summary(ctx context.Context, userID string, year, month int) (core.MonthSummary, error) {
	return s.repo.MonthSummary(ctx, userID, year, month)
}
