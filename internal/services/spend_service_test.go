package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"moneymanager/internal/core"
)

type fakeSpendRepo struct {
	mu     sync.Mutex
	nextID int64
	logs   []core.SpendLog
	err    error
}

func (f *fakeSpendRepo) CreateSpendLog(_ context.Context, s core.SpendLog) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	s.ID = f.nextID
	f.logs = append(f.logs, s)
	return s.ID, nil
}

func (f *fakeSpendRepo) ListSpendLogs(_ context.Context, userID string, _, _ int) ([]core.SpendLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.SpendLog
	for _, s := range f.logs {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSpendRepo) MonthSummary(_ context.Context, userID string, year, month int) (core.MonthSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	summary := core.MonthSummary{Year: year, Month: month}
	for _, s := range f.logs {
		if s.UserID == userID {
			summary.Total.Cents += s.Amount.Cents
		}
	}
	return summary, nil
}

type fakeBackupQueue struct {
	mu  sync.Mutex
	ids []int64
	err error
}

func (f *fakeBackupQueue) PublishSpendBackup(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, id)
	return nil
}

func validSpend() core.SpendLog {
	return core.SpendLog{
		UserID:        "u1",
		Category:      "groceries",
		Amount:        core.Money{Cents: 1250},
		Date:          core.NewDate(2026, 8, 15),
		PaymentMethod: "card",
	}
}

func TestSpendService_CreateSavesAndQueuesBackup(t *testing.T) {
	repo := &fakeSpendRepo{}
	queue := &fakeBackupQueue{}
	svc := NewSpendService(repo, queue)

	id, err := svc.Create(context.Background(), validSpend())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}
	if len(queue.ids) != 1 || queue.ids[0] != 1 {
		t.Errorf("queued = %v, want [1]", queue.ids)
	}
}

func TestSpendService_CreateRejectsInvalid(t *testing.T) {
	repo := &fakeSpendRepo{}
	svc := NewSpendService(repo, &fakeBackupQueue{})

	bad := validSpend()
	bad.Amount.Cents = 0
	if _, err := svc.Create(context.Background(), bad); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("error = %v, want ErrInvalidAmount", err)
	}
	if len(repo.logs) != 0 {
		t.Error("invalid spend log was saved")
	}
}

func TestSpendService_QueueFailureDoesNotFailCreate(t *testing.T) {
	repo := &fakeSpendRepo{}
	queue := &fakeBackupQueue{err: errors.New("broker down")}
	svc := NewSpendService(repo, queue)

	if _, err := svc.Create(context.Background(), validSpend()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(repo.logs) != 1 {
		t.Errorf("saved = %d, want 1", len(repo.logs))
	}
}

func TestSpendService_CreateWithoutQueue(t *testing.T) {
	svc := NewSpendService(&fakeSpendRepo{}, nil)
	if _, err := svc.Create(context.Background(), validSpend()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func TestSpendService_StorageErrorPropagates(t *testing.T) {
	repo := &fakeSpendRepo{err: errors.New("disk full")}
	svc := NewSpendService(repo, &fakeBackupQueue{})

	if _, err := svc.Create(context.Background(), validSpend()); err == nil {
		t.Fatal("storage error swallowed")
	}
}
