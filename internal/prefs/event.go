package prefs

import (
	"errors"
	"strings"

	"moneymanager/internal/core"
)

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeKind is the kind of row change carried by a feed event.
type ChangeKind string

func (k ChangeKind) Valid() bool {
	switch k {
	case ChangeInsert, ChangeUpdate, ChangeDelete:
		return true
	}
	return false
}

// ChangeEvent is the explicit, tagged payload delivered by the change
// feed. Field presence is tracked with flags instead of inspecting an
// untyped map; events are validated at the boundary before use.
type ChangeEvent struct {
	Table string
	Kind  ChangeKind
	Row   ChangeRow
}

// ChangeRow carries the changed row. Delete events have an empty row
// apart from the user id, so Has* flags distinguish "absent" from
// "empty".
type ChangeRow struct {
	UserID      string
	Currency    string
	HasCurrency bool
	Theme       core.Theme
	HasTheme    bool
}

var errMalformedEvent = errors.New("malformed change event")

// Validate rejects events a handler must not act on: unknown kinds,
// missing table, or a row with no user id to filter against.
func (e ChangeEvent) Validate() error {
	if strings.TrimSpace(e.Table) == "" {
		return errMalformedEvent
	}
	if !e.Kind.Valid() {
		return errMalformedEvent
	}
	if strings.TrimSpace(e.Row.UserID) == "" {
		return errMalformedEvent
	}
	return nil
}
