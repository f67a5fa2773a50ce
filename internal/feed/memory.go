// Package feed provides the in-process change feed used by tests and
// single-process deployments where no broker is configured. It matches
// the AMQP client's contract: every event on a table reaches every
// subscriber, and filtering stays client-side.
package feed

import (
	"context"
	"sync"

	"moneymanager/internal/prefs"
)

// Publisher is the write side of a change feed. Both this package's
// Memory feed and the AMQP client satisfy it together with
// prefs.ChangeFeed.
type Publisher interface {
	PublishChange(ctx context.Context, ev prefs.ChangeEvent) error
}

type Memory struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func(prefs.ChangeEvent)
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[string]map[int]func(prefs.ChangeEvent))}
}

// PublishChange delivers ev to every subscriber of its table. Handlers
// run on a separate goroutine, matching the asynchronous delivery of
// the broker-backed feed.
func (m *Memory) PublishChange(_ context.Context, ev prefs.ChangeEvent) error {
	m.mu.Lock()
	handlers := make([]func(prefs.ChangeEvent), 0, len(m.subs[ev.Table]))
	for _, h := range m.subs[ev.Table] {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()

	go func() {
		for _, h := range handlers {
			h(ev)
		}
	}()
	return nil
}

func (m *Memory) Subscribe(table string, handler func(prefs.ChangeEvent)) (prefs.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subs[table] == nil {
		m.subs[table] = make(map[int]func(prefs.ChangeEvent))
	}
	id := m.nextID
	m.nextID++
	m.subs[table][id] = handler

	return &memorySub{remove: func() {
		m.mu.Lock()
		delete(m.subs[table], id)
		m.mu.Unlock()
	}}, nil
}

// SubscriberCount reports active subscriptions for a table.
func (m *Memory) SubscriberCount(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs[table])
}

type memorySub struct {
	once   sync.Once
	remove func()
}

func (s *memorySub) Unsubscribe() {
	s.once.Do(s.remove)
}
