package prefs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"moneymanager/internal/core"
)

// ThemeCacheKey is the local cache key holding the fast-path theme.
const ThemeCacheKey = "theme"

// ThemeMirror caches the user's theme preference and keeps the resolved
// light/dark value applied to the document class. It layers two caches:
// the local key/value store gives a synchronous first value on Start,
// then the remote row supersedes it and refreshes the local copy.
type ThemeMirror struct {
	auth   AuthService
	store  PreferenceStore
	feed   ChangeFeed
	cache  LocalCache
	scheme SchemeSource
	doc    *DocumentClass

	mu        sync.Mutex
	theme     core.Theme
	resolved  core.Theme
	closed    bool
	feedSub   Subscription
	schemeSub Subscription
}

func NewThemeMirror(auth AuthService, store PreferenceStore, feed ChangeFeed, cache LocalCache, scheme SchemeSource, doc *DocumentClass) *ThemeMirror {
	if doc == nil {
		doc = NewDocumentClass()
	}
	return &ThemeMirror{
		auth:     auth,
		store:    store,
		feed:     feed,
		cache:    cache,
		scheme:   scheme,
		doc:      doc,
		theme:    core.DefaultTheme,
		resolved: core.ThemeLight,
	}
}

// Start reads the local fast-path cache synchronously, applies the
// current resolution, kicks off the authoritative fetch, and opens the
// feed subscription. Never fails past the boundary.
func (m *ThemeMirror) Start(ctx context.Context) {
	if cached, ok := m.cache.Get(ThemeCacheKey); ok {
		if t := core.Theme(cached); t.Valid() {
			m.mu.Lock()
			if !m.closed {
				m.theme = t
			}
			m.mu.Unlock()
		}
	}

	m.mu.Lock()
	if !m.closed {
		m.applyLocked()
		m.syncSchemeWatchLocked()
	}
	m.mu.Unlock()

	go m.refresh(ctx)

	sub, err := m.feed.Subscribe(PreferencesTable, m.handleChange)
	if err != nil {
		slog.Warn("theme mirror: feed subscribe failed, updates disabled", "error", err)
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	m.feedSub = sub
	m.mu.Unlock()
}

// Close releases the feed subscription and the scheme watch.
// Idempotent; late continuations are discarded against the closed flag.
func (m *ThemeMirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	feedSub := m.feedSub
	schemeSub := m.schemeSub
	m.feedSub = nil
	m.schemeSub = nil
	m.mu.Unlock()

	if feedSub != nil {
		feedSub.Unsubscribe()
	}
	if schemeSub != nil {
		schemeSub.Unsubscribe()
	}
}

// Theme returns the preference as stored: light, dark or system.
func (m *ThemeMirror) Theme() core.Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.theme
}

// ResolvedTheme returns the concrete light/dark value currently applied.
func (m *ThemeMirror) ResolvedTheme() core.Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved
}

// Document returns the class marker the mirror applies resolutions to.
func (m *ThemeMirror) Document() *DocumentClass {
	return m.doc
}

// SetTheme updates local state and the local cache immediately, then
// persists in the background. Invalid themes are dropped. The persisted
// write is fire-and-forget: failures are logged and the optimistic
// local value is kept, trading strict consistency for responsiveness.
func (m *ThemeMirror) SetTheme(theme core.Theme) {
	if !theme.Valid() {
		slog.Warn("theme mirror: ignoring invalid theme", "theme", string(theme))
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.theme = theme
	m.cache.Set(ThemeCacheKey, string(theme))
	m.applyLocked()
	m.syncSchemeWatchLocked()
	m.mu.Unlock()

	go m.persist(theme)
}

func (m *ThemeMirror) refresh(ctx context.Context) {
	user, err := m.auth.CurrentUser(ctx)
	if err != nil {
		slog.Warn("theme mirror: current user lookup failed", "error", err)
		return
	}
	if user == nil {
		return
	}

	pref, err := m.store.Find(ctx, user.ID)
	if errors.Is(err, core.ErrPreferenceNotFound) {
		return
	}
	if err != nil {
		slog.Warn("theme mirror: preference fetch failed", "user_id", user.ID, "error", err)
		return
	}

	m.adopt(pref.Theme)
}

// adopt installs theme as the authoritative value and refreshes the
// local cache to match.
func (m *ThemeMirror) adopt(theme core.Theme) {
	if !theme.Valid() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.theme = theme
	m.cache.Set(ThemeCacheKey, string(theme))
	m.applyLocked()
	m.syncSchemeWatchLocked()
}

// applyLocked recomputes the resolved value and pushes it to the
// document class. Callers hold m.mu.
func (m *ThemeMirror) applyLocked() {
	resolved := m.theme.Resolve(m.scheme.Dark())
	m.resolved = resolved
	m.doc.Apply(resolved)
}

// syncSchemeWatchLocked keeps the scheme watch alive exactly while the
// theme is system: an explicit light/dark choice must not follow OS
// changes. Callers hold m.mu.
func (m *ThemeMirror) syncSchemeWatchLocked() {
	if m.theme == core.ThemeSystem {
		if m.schemeSub != nil {
			return
		}
		sub, err := m.scheme.Watch(m.onSchemeChange)
		if err != nil {
			slog.Warn("theme mirror: scheme watch failed, system theme frozen", "error", err)
			return
		}
		m.schemeSub = sub
		return
	}
	if m.schemeSub != nil {
		sub := m.schemeSub
		m.schemeSub = nil
		go sub.Unsubscribe()
	}
}

// onSchemeChange re-resolves against the live scheme; the callback's
// payload is ignored in favor of reading Dark() at resolution time.
func (m *ThemeMirror) onSchemeChange(bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.theme != core.ThemeSystem {
		return
	}
	m.applyLocked()
}

func (m *ThemeMirror) handleChange(ev ChangeEvent) {
	if err := ev.Validate(); err != nil {
		slog.Warn("theme mirror: dropping malformed change event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	user, err := m.auth.CurrentUser(ctx)
	if err != nil || user == nil {
		return
	}
	if ev.Row.UserID != user.ID || !ev.Row.HasTheme {
		return
	}

	m.adopt(ev.Row.Theme)
}

func (m *ThemeMirror) persist(theme core.Theme) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	user, err := m.auth.CurrentUser(ctx)
	if err != nil {
		slog.Warn("theme mirror: current user lookup failed, not persisting", "error", err)
		return
	}
	if user == nil {
		// No session: the change stays local.
		return
	}

	// Check-then-write without a transaction. The existence check can
	// go stale before the write: two sessions may both insert, or an
	// update can land on a row deleted in between and silently touch
	// nothing. Accepted race, kept as observable behavior.
	_, err = m.store.Find(ctx, user.ID)
	switch {
	case errors.Is(err, core.ErrPreferenceNotFound):
		pref := core.UserPreference{UserID: user.ID, Currency: core.DefaultCurrency, Theme: theme}
		if err := m.store.Insert(ctx, pref); err != nil {
			slog.Error("theme mirror: preference insert failed", "user_id", user.ID, "error", err)
		}
	case err != nil:
		slog.Error("theme mirror: existence check failed, not persisting", "user_id", user.ID, "error", err)
	default:
		if err := m.store.UpdateTheme(ctx, user.ID, theme); err != nil {
			slog.Error("theme mirror: preference update failed", "user_id", user.ID, "error", err)
		}
	}
}
