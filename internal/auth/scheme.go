package auth

import (
	"sync"

	"moneymanager/internal/prefs"
)

// schemeHint is a per-session scheme source fed by client hints. It
// defaults to light until the first hint arrives.
type schemeHint struct {
	mu       sync.Mutex
	dark     bool
	nextID   int
	watchers map[int]func(dark bool)
}

func newSchemeHint() *schemeHint {
	return &schemeHint{watchers: make(map[int]func(bool))}
}

func (h *schemeHint) Dark() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dark
}

func (h *schemeHint) Watch(fn func(dark bool)) (prefs.Subscription, error) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.watchers[id] = fn
	h.mu.Unlock()

	return &schemeSub{remove: func() {
		h.mu.Lock()
		delete(h.watchers, id)
		h.mu.Unlock()
	}}, nil
}

// setDark records a new hint and notifies watchers on a change.
// Watchers run without the lock held; they may unsubscribe reentrantly.
func (h *schemeHint) setDark(dark bool) {
	h.mu.Lock()
	if h.dark == dark {
		h.mu.Unlock()
		return
	}
	h.dark = dark
	watchers := make([]func(bool), 0, len(h.watchers))
	for _, fn := range h.watchers {
		watchers = append(watchers, fn)
	}
	h.mu.Unlock()

	for _, fn := range watchers {
		fn(dark)
	}
}

type schemeSub struct {
	once   sync.Once
	remove func()
}

func (s *schemeSub) Unsubscribe() {
	s.once.Do(s.remove)
}
