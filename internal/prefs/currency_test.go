package prefs

import (
	"context"
	"errors"
	"testing"

	"moneymanager/internal/core"
)

func newCurrencyFixture(user *core.User, pref *core.UserPreference) (*CurrencyMirror, *fakeAuth, *fakeStore, *fakeFeed) {
	auth := &fakeAuth{user: user}
	store := &fakeStore{pref: pref}
	feed := &fakeFeed{}
	return NewCurrencyMirror(auth, store, feed), auth, store, feed
}

func TestCurrencyMirror_DefaultsWithoutRow(t *testing.T) {
	user := &core.User{ID: "u1", Email: "u1@example.com"}
	m, _, store, _ := newCurrencyFixture(user, nil)
	defer m.Close()

	m.Start(context.Background())
	waitFor(t, "initial fetch", func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.finds > 0
	})

	if got := m.Currency(); got != "USD" {
		t.Errorf("Currency() = %q, want %q", got, "USD")
	}
	if got := m.Symbol(); got != "$" {
		t.Errorf("Symbol() = %q, want %q", got, "$")
	}
}

func TestCurrencyMirror_AdoptsFetchedRow(t *testing.T) {
	user := &core.User{ID: "u1"}
	pref := &core.UserPreference{UserID: "u1", Currency: "EUR", Theme: core.ThemeSystem}
	m, _, _, _ := newCurrencyFixture(user, pref)
	defer m.Close()

	m.Start(context.Background())
	waitFor(t, "fetched currency", func() bool { return m.Currency() == "EUR" })

	if got := m.Symbol(); got != "€" {
		t.Errorf("Symbol() = %q, want %q", got, "€")
	}
}

func TestCurrencyMirror_UnknownCodeKeepsSymbolStale(t *testing.T) {
	user := &core.User{ID: "u1"}
	pref := &core.UserPreference{UserID: "u1", Currency: "EUR", Theme: core.ThemeSystem}
	m, _, _, feed := newCurrencyFixture(user, pref)
	defer m.Close()

	m.Start(context.Background())
	waitFor(t, "fetched currency", func() bool { return m.Currency() == "EUR" })

	feed.Emit(ChangeEvent{
		Table: PreferencesTable,
		Kind:  ChangeUpdate,
		Row:   ChangeRow{UserID: "u1", Currency: "XXX", HasCurrency: true},
	})
	waitFor(t, "unknown code adopted", func() bool { return m.Currency() == "XXX" })

	// The symbol stays whatever it was, not reset to a default.
	if got := m.Symbol(); got != "€" {
		t.Errorf("Symbol() after unknown code = %q, want stale %q", got, "€")
	}
}

func TestCurrencyMirror_FormatAmount(t *testing.T) {
	m, _, _, _ := newCurrencyFixture(nil, nil)
	defer m.Close()

	tests := []struct {
		amount float64
		want   string
	}{
		{3, "$3.00"},
		{0, "$0.00"},
		{2.5, "$2.50"},
		{1234.567, "$1234.57"},
		{0.004, "$0.00"},
		{0.005, "$0.01"},
	}
	for _, tt := range tests {
		if got := m.FormatAmount(tt.amount); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}

	// Deterministic: repeated calls agree.
	first := m.FormatAmount(2.005)
	for i := 0; i < 10; i++ {
		if got := m.FormatAmount(2.005); got != first {
			t.Fatalf("FormatAmount(2.005) unstable: %q then %q", first, got)
		}
	}
}

func TestCurrencyMirror_IgnoresOtherUsersEvents(t *testing.T) {
	user := &core.User{ID: "u1"}
	m, _, _, feed := newCurrencyFixture(user, nil)
	defer m.Close()

	m.Start(context.Background())
	waitFor(t, "subscription", func() bool { return feed.active() == 1 })

	feed.Emit(ChangeEvent{
		Table: PreferencesTable,
		Kind:  ChangeUpdate,
		Row:   ChangeRow{UserID: "someone-else", Currency: "GBP", HasCurrency: true},
	})

	if got := m.Currency(); got != "USD" {
		t.Errorf("Currency() after foreign event = %q, want %q", got, "USD")
	}
}

func TestCurrencyMirror_MatchingEventOverridesFetchedValue(t *testing.T) {
	user := &core.User{ID: "u1"}
	pref := &core.UserPreference{UserID: "u1", Currency: "EUR", Theme: core.ThemeSystem}
	m, _, _, feed := newCurrencyFixture(user, pref)
	defer m.Close()

	m.Start(context.Background())
	waitFor(t, "fetched currency", func() bool { return m.Currency() == "EUR" })

	feed.Emit(ChangeEvent{
		Table: PreferencesTable,
		Kind:  ChangeUpdate,
		Row:   ChangeRow{UserID: "u1", Currency: "INR", HasCurrency: true},
	})
	waitFor(t, "event adopted", func() bool { return m.Currency() == "INR" })

	if got := m.Symbol(); got != "₹" {
		t.Errorf("Symbol() = %q, want %q", got, "₹")
	}
}

func TestCurrencyMirror_DeleteEventWithoutCurrencyIgnored(t *testing.T) {
	user := &core.User{ID: "u1"}
	pref := &core.UserPreference{UserID: "u1", Currency: "EUR", Theme: core.ThemeSystem}
	m, _, _, feed := newCurrencyFixture(user, pref)
	defer m.Close()

	m.Start(context.Background())
	waitFor(t, "fetched currency", func() bool { return m.Currency() == "EUR" })

	feed.Emit(ChangeEvent{
		Table: PreferencesTable,
		Kind:  ChangeDelete,
		Row:   ChangeRow{UserID: "u1"},
	})

	if got := m.Currency(); got != "EUR" {
		t.Errorf("Currency() after delete event = %q, want %q", got, "EUR")
	}
}

func TestCurrencyMirror_MalformedEventDropped(t *testing.T) {
	user := &core.User{ID: "u1"}
	m, _, _, feed := newCurrencyFixture(user, nil)
	defer m.Close()

	m.Start(context.Background())
	waitFor(t, "subscription", func() bool { return feed.active() == 1 })

	feed.Emit(ChangeEvent{Kind: ChangeKind("mangled"), Row: ChangeRow{UserID: "u1", Currency: "EUR", HasCurrency: true}})

	if got := m.Currency(); got != "USD" {
		t.Errorf("Currency() after malformed event = %q, want %q", got, "USD")
	}
}

func TestCurrencyMirror_TransientFetchErrorKeepsDefaults(t *testing.T) {
	user := &core.User{ID: "u1"}
	auth := &fakeAuth{user: user}
	store := &fakeStore{findErr: errors.New("store down")}
	feed := &fakeFeed{}
	m := NewCurrencyMirror(auth, store, feed)
	defer m.Close()

	m.Start(context.Background())
	waitFor(t, "fetch attempted", func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.finds > 0
	})

	if got, want := m.Currency(), "USD"; got != want {
		t.Errorf("Currency() = %q, want %q", got, want)
	}
}

func TestCurrencyMirror_ImmediateCloseLeavesNoSubscription(t *testing.T) {
	gate := make(chan struct{})
	auth := &fakeAuth{user: &core.User{ID: "u1"}, gate: gate}
	store := &fakeStore{pref: &core.UserPreference{UserID: "u1", Currency: "EUR", Theme: core.ThemeSystem}}
	feed := &fakeFeed{}
	m := NewCurrencyMirror(auth, store, feed)

	m.Start(context.Background())
	m.Close()
	close(gate) // let the in-flight lookup finish late

	waitFor(t, "no active subscription", func() bool { return feed.active() == 0 })
	// The late continuation must not revive the closed mirror.
	if got := m.Currency(); got != "USD" {
		t.Errorf("Currency() after close = %q, want %q", got, "USD")
	}

	m.Close() // idempotent
}

func TestCurrencyMirror_SetCurrencyPersistsOnce(t *testing.T) {
	user := &core.User{ID: "u1"}
	m, _, store, _ := newCurrencyFixture(user, nil)
	defer m.Close()

	m.Start(context.Background())
	m.SetCurrency("GBP")

	waitFor(t, "insert persisted", func() bool {
		_, inserts, _, _ := store.snapshot()
		return inserts == 1
	})

	m.SetCurrency("CAD")
	waitFor(t, "update persisted", func() bool {
		_, _, _, updates := store.snapshot()
		return updates == 1
	})

	pref, inserts, _, _ := store.snapshot()
	if inserts != 1 {
		t.Errorf("inserts = %d, want 1", inserts)
	}
	if pref == nil || pref.Currency != "CAD" {
		t.Errorf("stored pref = %+v, want currency CAD", pref)
	}
}

func TestCurrencyMirror_SetCurrencyWithoutSessionStaysLocal(t *testing.T) {
	m, _, store, _ := newCurrencyFixture(nil, nil)
	defer m.Close()

	m.Start(context.Background())
	m.SetCurrency("EUR")

	waitFor(t, "local adoption", func() bool { return m.Currency() == "EUR" })
	if _, inserts, _, updates := store.snapshot(); inserts != 0 || updates != 0 {
		t.Errorf("store written without a session: inserts=%d updates=%d", inserts, updates)
	}
}
