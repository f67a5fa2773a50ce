// Package prefs implements the preference mirrors: per-session reactive
// caches of a user's display currency and theme, backed by the
// user_preferences table and kept fresh through the change feed.
package prefs

import (
	"context"

	"moneymanager/internal/core"
)

// PreferencesTable is the table name mirrors subscribe to on the feed.
const PreferencesTable = "user_preferences"

type (
	// AuthService resolves the current user. A nil user with a nil
	// error means "no session" and is not a failure.
	AuthService interface {
		CurrentUser(ctx context.Context) (*core.User, error)
	}

	// PreferenceStore is the remote preference row, one per user.
	// Find returns core.ErrPreferenceNotFound when no row exists, which
	// callers must distinguish from real errors.
	PreferenceStore interface {
		Find(ctx context.Context, userID string) (*core.UserPreference, error)
		Insert(ctx context.Context, pref core.UserPreference) error
		UpdateTheme(ctx context.Context, userID string, theme core.Theme) error
		UpdateCurrency(ctx context.Context, userID string, code string) error
	}

	// ChangeFeed delivers every insert/update/delete on a table across
	// all users. There is no server-side per-user filter; subscribers
	// filter in their handlers.
	//
	// Handlers run on the feed's goroutine and must not block.
	ChangeFeed interface {
		Subscribe(table string, handler func(ChangeEvent)) (Subscription, error)
	}

	// Subscription is a disposable feed or watch registration.
	// Unsubscribe is idempotent.
	Subscription interface {
		Unsubscribe()
	}

	// LocalCache is a small persistent key/value store scoped to the
	// installation, not to the user. The theme mirror uses it as a fast
	// path to avoid a flash of the wrong theme before the remote row
	// arrives.
	LocalCache interface {
		Get(key string) (string, bool)
		Set(key, value string)
	}

	// SchemeSource reports the client's OS-level color-scheme
	// preference. Watch registers a callback fired on changes; the
	// callback must not be invoked before Watch returns.
	SchemeSource interface {
		Dark() bool
		Watch(fn func(dark bool)) (Subscription, error)
	}
)
