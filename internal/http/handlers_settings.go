package http

import (
	"net/http"
	"strings"

	"moneymanager/internal/auth"
	"moneymanager/internal/core"
)

type currencyOption struct {
	Code     string
	Symbol   string
	Selected bool
}

type settingsData struct {
	Email      string
	ThemeClass string
	Theme      string
	Currency   string
	Symbol     string
	Currencies []currencyOption
	Sample     string
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	currency := sess.Mirrors().Currency
	theme := sess.Mirrors().Theme

	data := settingsData{
		Email:      sess.User().Email,
		ThemeClass: string(theme.ResolvedTheme()),
		Theme:      string(theme.Theme()),
		Currency:   currency.Currency(),
		Symbol:     currency.Symbol(),
		Sample:     currency.FormatAmount(1234.5),
	}
	for _, c := range core.SupportedCurrencies {
		data.Currencies = append(data.Currencies, currencyOption{
			Code:     c.Code,
			Symbol:   c.Symbol,
			Selected: c.Code == data.Currency,
		})
	}

	s.render(w, r, "settings.html", data)
}

// handleSetCurrency adopts the selected currency on the session mirror.
// The mirror persists in the background and fans the change out to the
// user's other sessions.
func (s *Server) handleSetCurrency(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	code := strings.ToUpper(strings.TrimSpace(r.Form.Get("currency")))
	if code == "" {
		http.Error(w, "missing currency", http.StatusUnprocessableEntity)
		return
	}

	sess.Mirrors().Currency.SetCurrency(code)
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	theme := core.Theme(strings.TrimSpace(r.Form.Get("theme")))
	if !theme.Valid() {
		http.Error(w, "invalid theme", http.StatusUnprocessableEntity)
		return
	}

	sess.Mirrors().Theme.SetTheme(theme)
	http.Redirect(w, r, "/settings", http.StatusSeeOther)
}
