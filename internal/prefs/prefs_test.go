package prefs

import (
	"context"
	"sync"
	"testing"
	"time"

	"moneymanager/internal/core"
)

// Shared fakes for the mirror tests.

type fakeAuth struct {
	mu   sync.Mutex
	user *core.User
	err  error
	// gate, when set, blocks CurrentUser until closed or ctx done.
	gate chan struct{}
}

func (a *fakeAuth) CurrentUser(ctx context.Context) (*core.User, error) {
	a.mu.Lock()
	gate := a.gate
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.user, a.err
}

type fakeStore struct {
	mu      sync.Mutex
	pref    *core.UserPreference
	findErr error

	finds           int
	inserts         int
	themeUpdates    int
	currencyUpdates int
}

func (s *fakeStore) Find(_ context.Context, userID string) (*core.UserPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.pref == nil || s.pref.UserID != userID {
		return nil, core.ErrPreferenceNotFound
	}
	cp := *s.pref
	return &cp, nil
}

func (s *fakeStore) Insert(_ context.Context, pref core.UserPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	cp := pref
	s.pref = &cp
	return nil
}

func (s *fakeStore) UpdateTheme(_ context.Context, userID string, theme core.Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.themeUpdates++
	if s.pref != nil && s.pref.UserID == userID {
		s.pref.Theme = theme
	}
	return nil
}

func (s *fakeStore) UpdateCurrency(_ context.Context, userID string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currencyUpdates++
	if s.pref != nil && s.pref.UserID == userID {
		s.pref.Currency = code
	}
	return nil
}

func (s *fakeStore) snapshot() (pref *core.UserPreference, inserts, themeUpdates, currencyUpdates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pref != nil {
		cp := *s.pref
		pref = &cp
	}
	return pref, s.inserts, s.themeUpdates, s.currencyUpdates
}

type fakeFeed struct {
	mu           sync.Mutex
	subscribeErr error
	nextID       int
	handlers     map[int]func(ChangeEvent)
}

func (f *fakeFeed) Subscribe(_ string, handler func(ChangeEvent)) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	if f.handlers == nil {
		f.handlers = make(map[int]func(ChangeEvent))
	}
	id := f.nextID
	f.nextID++
	f.handlers[id] = handler
	return &fakeSub{remove: func() {
		f.mu.Lock()
		delete(f.handlers, id)
		f.mu.Unlock()
	}}, nil
}

func (f *fakeFeed) Emit(ev ChangeEvent) {
	f.mu.Lock()
	hs := make([]func(ChangeEvent), 0, len(f.handlers))
	for _, h := range f.handlers {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(ev)
	}
}

func (f *fakeFeed) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

type fakeSub struct {
	once   sync.Once
	remove func()
}

func (s *fakeSub) Unsubscribe() {
	s.once.Do(s.remove)
}

type fakeCache struct {
	mu   sync.Mutex
	data map[string]string
}

func (c *fakeCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *fakeCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[string]string)
	}
	c.data[key] = value
}

type fakeScheme struct {
	mu       sync.Mutex
	dark     bool
	nextID   int
	watchers map[int]func(bool)
}

func (s *fakeScheme) Dark() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dark
}

func (s *fakeScheme) Watch(fn func(bool)) (Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchers == nil {
		s.watchers = make(map[int]func(bool))
	}
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	return &fakeSub{remove: func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}}, nil
}

// SetDark flips the simulated OS preference and notifies watchers
// without holding the lock, like a real event source would.
func (s *fakeScheme) SetDark(dark bool) {
	s.mu.Lock()
	s.dark = dark
	fns := make([]func(bool), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(dark)
	}
}

func (s *fakeScheme) watcherCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func waitFor(t *testing.T, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
