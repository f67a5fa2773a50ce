// Package memory is an in-memory backup target for tests and local
// runs without Google credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"moneymanager/internal/core"
	ports "moneymanager/internal/sheets"
)

type Store struct {
	mu   sync.Mutex
	rows []core.SpendLog
	err  error
}

var _ ports.LogAppender = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// FailWith makes every following Append return err.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) Append(_ context.Context, entry core.SpendLog) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.rows = append(s.rows, entry)
	return fmt.Sprintf("memory!A%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []core.SpendLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.SpendLog(nil), s.rows...)
}
