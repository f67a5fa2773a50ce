package core

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Defaults used whenever no preference row exists for a user.
const (
	DefaultCurrency = "USD"
	DefaultSymbol   = "$"
	DefaultTheme    = ThemeSystem
)

type (
	// Theme is the user's display theme preference.
	Theme string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	User struct {
		ID    string
		Email string
	}

	// SpendLog is a single spending entry logged by a user.
	SpendLog struct {
		ID            int64
		UserID        string
		Category      string
		Amount        Money
		Date          Date
		PaymentMethod string
		Note          string
	}

	// UserPreference mirrors the user_preferences row. At most one row
	// exists per user; absence of a row means "use defaults".
	UserPreference struct {
		UserID   string
		Currency string
		Theme    Theme
	}

	// MonthSummary aggregates a user's spending for one month.
	MonthSummary struct {
		Year       int
		Month      int
		Total      Money
		ByCategory []CategoryAmount
	}

	CategoryAmount struct {
		Name   string
		Amount Money
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidDate        = errors.New("invalid date")
	ErrEmptyCategory      = errors.New("empty category")
	ErrEmptyPaymentMethod = errors.New("empty payment method")
	ErrNoteTooLong        = errors.New("note too long (max 500 characters)")
	ErrInvalidTheme       = errors.New("invalid theme")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters long")
	ErrPasswordMismatch   = errors.New("passwords do not match")

	// ErrPreferenceNotFound reports that no preference row exists for a
	// user. Callers must treat it as a valid state, not a failure.
	ErrPreferenceNotFound = errors.New("user preference not found")
)

// NewDate creates a Date from year, month, day at midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Valid reports whether t is one of the three known themes.
func (t Theme) Valid() bool {
	switch t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return true
	}
	return false
}

// Resolve maps the theme to a concrete light/dark value. A system theme
// follows the caller-supplied dark flag; explicit themes pin themselves.
func (t Theme) Resolve(dark bool) Theme {
	if t == ThemeSystem {
		if dark {
			return ThemeDark
		}
		return ThemeLight
	}
	return t
}

func (s SpendLog) Validate() error {
	if err := s.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.Category) == "" {
		return ErrEmptyCategory
	}
	if err := s.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(s.PaymentMethod) == "" {
		return ErrEmptyPaymentMethod
	}
	if len(s.Note) > 500 {
		return ErrNoteTooLong
	}
	return nil
}

func (p UserPreference) Validate() error {
	if !p.Theme.Valid() {
		return ErrInvalidTheme
	}
	if strings.TrimSpace(p.Currency) == "" {
		return errors.New("empty currency code")
	}
	return nil
}

// ValidateCredentials checks a signup/login email and password pair.
func ValidateCredentials(email, password string) error {
	if _, err := mail.ParseAddress(strings.TrimSpace(email)); err != nil {
		return ErrInvalidEmail
	}
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}
