package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"moneymanager/internal/auth"
	"moneymanager/internal/core"
)

type spendRow struct {
	Date          string
	Category      string
	Anchor        string
	Amount        string
	PaymentMethod string
	Note          string
}

type categoryRow struct {
	Name   string
	Anchor string
	Amount string
	Width  int
}

type dashboardData struct {
	Email      string
	Year       int
	Month      int
	Total      string
	Symbol     string
	ThemeClass string
	Rows       []categoryRow
	Items      []spendRow
	Error      string
	Today      string
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			month = m
		}
	}
	if month < 1 || month > 12 {
		month = int(now.Month())
	}

	data := s.buildDashboard(r, sess, year, month)
	s.render(w, r, "dashboard.html", data)
}

func (s *Server) buildDashboard(r *http.Request, sess *auth.Session, year, month int) dashboardData {
	currency := sess.Mirrors().Currency
	format := func(cents int64) string {
		return currency.FormatAmount(float64(cents) / 100)
	}

	data := dashboardData{
		Email:      sess.User().Email,
		Year:       year,
		Month:      month,
		Symbol:     currency.Symbol(),
		ThemeClass: string(sess.Mirrors().Theme.ResolvedTheme()),
		Today:      time.Now().Format("2006-01-02"),
	}

	userID := sess.User().ID
	summary, err := s.getSummary(r, userID, year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Month summary failed",
			"user_id", userID, "error", err)
		data.Error = "Could not load this month's summary"
		return data
	}
	data.Total = format(summary.Total.Cents)

	var maxCents int64
	for _, ca := range summary.ByCategory {
		if ca.Amount.Cents > maxCents {
			maxCents = ca.Amount.Cents
		}
	}
	for _, ca := range summary.ByCategory {
		width := 0
		if maxCents > 0 && ca.Amount.Cents > 0 {
			width = int((ca.Amount.Cents*100 + maxCents/2) / maxCents)
			if width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Rows = append(data.Rows, categoryRow{
			Name:   ca.Name,
			Anchor: slug.Make(ca.Name),
			Amount: format(ca.Amount.Cents),
			Width:  width,
		})
	}

	items, err := s.getList(r, userID, year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Spend list failed",
			"user_id", userID, "error", err)
		return data
	}
	for _, item := range items {
		data.Items = append(data.Items, spendRow{
			Date:          item.Date.Format("2006-01-02"),
			Category:      item.Category,
			Anchor:        slug.Make(item.Category),
			Amount:        format(item.Amount.Cents),
			PaymentMethod: item.PaymentMethod,
			Note:          item.Note,
		})
	}
	return data
}

func (s *Server) getSummary(r *http.Request, userID string, year, month int) (core.MonthSummary, error) {
	key := s.cacheKey(userID, year, month)
	if data, ok := s.summaryCache.Get(key); ok {
		return data, nil
	}

	summary, err := s.spend.Summary(r.Context(), userID, year, month)
	if err != nil {
		return core.MonthSummary{}, err
	}
	s.summaryCache.Set(key, summary)
	return summary, nil
}

func (s *Server) getList(r *http.Request, userID string, year, month int) ([]core.SpendLog, error) {
	key := s.cacheKey(userID, year, month)
	if items, ok := s.listCache.Get(key); ok {
		out := make([]core.SpendLog, len(items))
		copy(out, items)
		return out, nil
	}

	items, err := s.spend.List(r.Context(), userID, year, month)
	if err != nil {
		return nil, err
	}
	s.listCache.Set(key, items)
	return items, nil
}

func (s *Server) handleAddSpend(w http.ResponseWriter, r *http.Request, sess *auth.Session) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	date := time.Now()
	if v := strings.TrimSpace(r.Form.Get("date")); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			http.Error(w, "invalid date", http.StatusUnprocessableEntity)
			return
		}
		date = parsed
	}

	cents, err := core.ParseDecimalToCents(r.Form.Get("amount"))
	if err != nil {
		http.Error(w, "invalid amount", http.StatusUnprocessableEntity)
		return
	}

	entry := core.SpendLog{
		UserID:        sess.User().ID,
		Category:      sanitizeInput(r.Form.Get("category")),
		Amount:        core.Money{Cents: cents},
		Date:          core.NewDate(date.Year(), int(date.Month()), date.Day()),
		PaymentMethod: sanitizeInput(r.Form.Get("payment_method")),
		Note:          sanitizeInput(r.Form.Get("note")),
	}

	if _, err := s.spend.Create(r.Context(), entry); err != nil {
		if validationErr(err) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		slog.ErrorContext(r.Context(), "Spend log create failed",
			"user_id", entry.UserID, "error", err)
		http.Error(w, "could not save entry", http.StatusInternalServerError)
		return
	}

	s.invalidateMonth(entry.UserID, date.Year(), int(date.Month()))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func validationErr(err error) bool {
	for _, sentinel := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
		core.ErrEmptyCategory,
		core.ErrEmptyPaymentMethod,
		core.ErrNoteTooLong,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// sanitizeInput trims whitespace and strips control characters except
// tab, newline and carriage return.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
