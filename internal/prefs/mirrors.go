package prefs

import "context"

// Mirrors bundles the two per-session mirrors so the session lifecycle
// can start and tear them down as one unit.
type Mirrors struct {
	Currency *CurrencyMirror
	Theme    *ThemeMirror
}

func NewMirrors(auth AuthService, store PreferenceStore, feed ChangeFeed, cache LocalCache, scheme SchemeSource) *Mirrors {
	return &Mirrors{
		Currency: NewCurrencyMirror(auth, store, feed),
		Theme:    NewThemeMirror(auth, store, feed, cache, scheme, nil),
	}
}

func (m *Mirrors) Start(ctx context.Context) {
	m.Currency.Start(ctx)
	m.Theme.Start(ctx)
}

// Close is idempotent, like the mirrors it owns.
func (m *Mirrors) Close() {
	m.Currency.Close()
	m.Theme.Close()
}
