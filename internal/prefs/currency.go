package prefs

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"moneymanager/internal/core"
)

// storeTimeout bounds the background store calls triggered by feed
// events and Set* persistence, which run outside any request context.
const storeTimeout = 10 * time.Second

// CurrencyMirror caches the user's preferred display currency. It is
// created per session, started once, and closed when the session ends.
// All failures degrade to the last-known or default value; nothing
// escapes the mirror boundary.
type CurrencyMirror struct {
	auth  AuthService
	store PreferenceStore
	feed  ChangeFeed

	mu       sync.Mutex
	currency string
	symbol   string
	closed   bool
	sub      Subscription
}

func NewCurrencyMirror(auth AuthService, store PreferenceStore, feed ChangeFeed) *CurrencyMirror {
	return &CurrencyMirror{
		auth:     auth,
		store:    store,
		feed:     feed,
		currency: core.DefaultCurrency,
		symbol:   core.DefaultSymbol,
	}
}

// Start fetches the authoritative row in the background and opens the
// feed subscription. It never fails: a broken feed or store leaves the
// mirror serving defaults.
func (m *CurrencyMirror) Start(ctx context.Context) {
	go m.refresh(ctx)

	sub, err := m.feed.Subscribe(PreferencesTable, m.handleChange)
	if err != nil {
		slog.Warn("currency mirror: feed subscribe failed, updates disabled", "error", err)
		return
	}

	m.mu.Lock()
	if m.closed {
		// Closed between Start and here; drop the subscription.
		m.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	m.sub = sub
	m.mu.Unlock()
}

// Close releases the feed subscription. Idempotent; late continuations
// from in-flight calls are discarded against the closed flag.
func (m *CurrencyMirror) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sub := m.sub
	m.sub = nil
	m.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Currency returns the effective currency code, never empty.
func (m *CurrencyMirror) Currency() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currency
}

// Symbol returns the display symbol for the effective currency.
func (m *CurrencyMirror) Symbol() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.symbol
}

// FormatAmount renders amount as symbol + fixed two fractional digits,
// no thousands separators. Rounding is half away from zero on the cent
// value (math.Round of amount*100), so FormatAmount(2.005) depends on
// the binary representation of 2.005 but is deterministic.
func (m *CurrencyMirror) FormatAmount(amount float64) string {
	cents := math.Round(amount * 100)
	return m.Symbol() + strconv.FormatFloat(cents/100, 'f', 2, 64)
}

// SetCurrency adopts code locally and persists it in the background
// with the same non-transactional check-then-write the theme mirror
// uses. Unknown codes are still adopted; the symbol then stays stale.
func (m *CurrencyMirror) SetCurrency(code string) {
	m.adopt(code)
	go m.persist(code)
}

func (m *CurrencyMirror) refresh(ctx context.Context) {
	user, err := m.auth.CurrentUser(ctx)
	if err != nil {
		slog.Warn("currency mirror: current user lookup failed", "error", err)
		return
	}
	if user == nil {
		// No session: stay on defaults.
		return
	}

	pref, err := m.store.Find(ctx, user.ID)
	if errors.Is(err, core.ErrPreferenceNotFound) {
		// No row is a valid state, keep defaults.
		return
	}
	if err != nil {
		slog.Warn("currency mirror: preference fetch failed", "user_id", user.ID, "error", err)
		return
	}

	m.adopt(pref.Currency)
}

// adopt installs code as the effective currency. When the code is not
// in the supported table the previous symbol is kept unchanged; the
// mismatch is intentional observable behavior, not silently repaired.
func (m *CurrencyMirror) adopt(code string) {
	if code == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.currency = code
	if sym, ok := core.SymbolFor(code); ok {
		m.symbol = sym
	}
}

// handleChange runs for every event on the preferences table, across
// all users and all change kinds. Filtering by user happens here
// because the feed has no server-side per-user scope.
func (m *CurrencyMirror) handleChange(ev ChangeEvent) {
	if err := ev.Validate(); err != nil {
		slog.Warn("currency mirror: dropping malformed change event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	user, err := m.auth.CurrentUser(ctx)
	if err != nil || user == nil {
		return
	}
	if ev.Row.UserID != user.ID || !ev.Row.HasCurrency {
		return
	}

	m.adopt(ev.Row.Currency)
}

func (m *CurrencyMirror) persist(code string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	user, err := m.auth.CurrentUser(ctx)
	if err != nil {
		slog.Warn("currency mirror: current user lookup failed, not persisting", "error", err)
		return
	}
	if user == nil {
		// Local-only change without a session.
		return
	}

	// Check-then-write, deliberately not transactional: concurrent
	// sessions can both decide to insert or race on the update. The
	// local optimistic value is never rolled back on failure.
	_, err = m.store.Find(ctx, user.ID)
	switch {
	case errors.Is(err, core.ErrPreferenceNotFound):
		pref := core.UserPreference{UserID: user.ID, Currency: code, Theme: core.DefaultTheme}
		if err := m.store.Insert(ctx, pref); err != nil {
			slog.Error("currency mirror: preference insert failed", "user_id", user.ID, "error", err)
		}
	case err != nil:
		slog.Error("currency mirror: existence check failed, not persisting", "user_id", user.ID, "error", err)
	default:
		if err := m.store.UpdateCurrency(ctx, user.ID, code); err != nil {
			slog.Error("currency mirror: preference update failed", "user_id", user.ID, "error", err)
		}
	}
}
