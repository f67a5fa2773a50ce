package prefs

import (
	"sync"

	"moneymanager/internal/core"
)

// DocumentClass is the global visual marker the resolved theme is
// applied to, the server-side analog of the document root's class list.
// Exactly one of light/dark is set at any time; applying one clears the
// other.
type DocumentClass struct {
	mu    sync.Mutex
	class core.Theme
}

// NewDocumentClass starts with the light class set.
func NewDocumentClass() *DocumentClass {
	return &DocumentClass{class: core.ThemeLight}
}

// Apply sets the marker to resolved. Only light and dark are legal;
// anything else is ignored so the marker is never left unset.
func (d *DocumentClass) Apply(resolved core.Theme) {
	if resolved != core.ThemeLight && resolved != core.ThemeDark {
		return
	}
	d.mu.Lock()
	d.class = resolved
	d.mu.Unlock()
}

// Current returns the class currently set, always light or dark.
func (d *DocumentClass) Current() core.Theme {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.class
}
