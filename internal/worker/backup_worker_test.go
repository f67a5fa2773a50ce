package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"moneymanager/internal/amqp"
	"moneymanager/internal/core"
	"moneymanager/internal/sheets/memory"
	"moneymanager/internal/storage"
)

type fakeBackupRepo struct {
	mu       sync.Mutex
	logs     map[int64]core.SpendLog
	backedUp map[int64]bool
	markErr  error
}

func newFakeBackupRepo(logs ...core.SpendLog) *fakeBackupRepo {
	r := &fakeBackupRepo{
		logs:     make(map[int64]core.SpendLog),
		backedUp: make(map[int64]bool),
	}
	for _, s := range logs {
		r.logs[s.ID] = s
	}
	return r
}

func (r *fakeBackupRepo) GetSpendLog(_ context.Context, id int64) (core.SpendLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.logs[id]
	if !ok {
		return core.SpendLog{}, storage.ErrSpendLogNotFound
	}
	return s, nil
}

func (r *fakeBackupRepo) GetPendingBackup(_ context.Context, limit int) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id := range r.logs {
		if !r.backedUp[id] {
			ids = append(ids, id)
		}
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (r *fakeBackupRepo) MarkBackedUp(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	r.backedUp[id] = true
	return nil
}

func spendLog(id int64) core.SpendLog {
	return core.SpendLog{
		ID:            id,
		UserID:        "u1",
		Category:      "groceries",
		Amount:        core.Money{Cents: 100 * id},
		Date:          core.NewDate(2026, 8, int(id)),
		PaymentMethod: "card",
	}
}

func TestHandleBackupMessage_ExportsAndMarks(t *testing.T) {
	repo := newFakeBackupRepo(spendLog(1))
	target := memory.New()
	w := NewBackupWorker(repo, target, 10)

	err := w.HandleBackupMessage(context.Background(), &amqp.SpendBackupMessage{ID: 1})
	if err != nil {
		t.Fatalf("HandleBackupMessage() error = %v", err)
	}
	if rows := target.Rows(); len(rows) != 1 || rows[0].ID != 1 {
		t.Errorf("rows = %+v", rows)
	}
	if !repo.backedUp[1] {
		t.Error("entry not marked as backed up")
	}
}

func TestHandleBackupMessage_VanishedEntryAcks(t *testing.T) {
	w := NewBackupWorker(newFakeBackupRepo(), memory.New(), 10)

	if err := w.HandleBackupMessage(context.Background(), &amqp.SpendBackupMessage{ID: 99}); err != nil {
		t.Errorf("vanished entry error = %v, want nil", err)
	}
}

func TestHandleBackupMessage_AppendFailureRequeues(t *testing.T) {
	repo := newFakeBackupRepo(spendLog(1))
	target := memory.New()
	target.FailWith(errors.New("quota exceeded"))
	w := NewBackupWorker(repo, target, 10)

	if err := w.HandleBackupMessage(context.Background(), &amqp.SpendBackupMessage{ID: 1}); err == nil {
		t.Fatal("append failure swallowed")
	}
	if repo.backedUp[1] {
		t.Error("failed export marked as backed up")
	}
}

func TestProcessPending_SweepsBatch(t *testing.T) {
	repo := newFakeBackupRepo(spendLog(1), spendLog(2), spendLog(3))
	repo.backedUp[2] = true
	target := memory.New()
	w := NewBackupWorker(repo, target, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if rows := target.Rows(); len(rows) != 2 {
		t.Errorf("exported %d rows, want 2", len(rows))
	}
	if !repo.backedUp[1] || !repo.backedUp[3] {
		t.Error("pending entries not marked")
	}
}

func TestProcessPending_MarkFailureStillExports(t *testing.T) {
	repo := newFakeBackupRepo(spendLog(1))
	repo.markErr = errors.New("disk full")
	target := memory.New()
	w := NewBackupWorker(repo, target, 10)

	if err := w.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending() error = %v", err)
	}
	if len(target.Rows()) != 1 {
		t.Error("export skipped on bookkeeping failure")
	}
}
