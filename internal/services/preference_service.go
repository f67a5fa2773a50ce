// Package services orchestrates storage writes with the change feed and
// the backup queue. Writes land in SQLite first; everything downstream
// is best-effort and never fails the caller.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"moneymanager/internal/core"
	"moneymanager/internal/feed"
	"moneymanager/internal/prefs"
)

// PreferenceRepo is the slice of the storage layer the preference
// service needs.
type PreferenceRepo interface {
	FindPreference(ctx context.Context, userID string) (core.UserPreference, error)
	InsertPreference(ctx context.Context, p core.UserPreference) error
	UpdatePreferenceCurrency(ctx context.Context, userID, currency string) error
	UpdatePreferenceTheme(ctx context.Context, userID string, theme core.Theme) error
}

// PreferenceService is the remote preference store behind the mirrors.
// Every successful write is announced on the change feed so other
// sessions of the same user converge.
type PreferenceService struct {
	repo      PreferenceRepo
	publisher feed.Publisher
}

func NewPreferenceService(repo PreferenceRepo, publisher feed.Publisher) *PreferenceService {
	return &PreferenceService{repo: repo, publisher: publisher}
}

func (s *PreferenceService) Find(ctx context.Context, userID string) (*core.UserPreference, error) {
	pref, err := s.repo.FindPreference(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

func (s *PreferenceService) Insert(ctx context.Context, pref core.UserPreference) error {
	if err := pref.Validate(); err != nil {
		return fmt.Errorf("validate preference: %w", err)
	}
	if err := s.repo.InsertPreference(ctx, pref); err != nil {
		return err
	}

	s.publish(ctx, prefs.ChangeEvent{
		Table: prefs.PreferencesTable,
		Kind:  prefs.ChangeInsert,
		Row: prefs.ChangeRow{
			UserID:      pref.UserID,
			Currency:    pref.Currency,
			HasCurrency: true,
			Theme:       pref.Theme,
			HasTheme:    true,
		},
	})
	return nil
}

func (s *PreferenceService) UpdateCurrency(ctx context.Context, userID, code string) error {
	if err := s.repo.UpdatePreferenceCurrency(ctx, userID, code); err != nil {
		return err
	}

	s.publish(ctx, prefs.ChangeEvent{
		Table: prefs.PreferencesTable,
		Kind:  prefs.ChangeUpdate,
		Row:   prefs.ChangeRow{UserID: userID, Currency: code, HasCurrency: true},
	})
	return nil
}

func (s *PreferenceService) UpdateTheme(ctx context.Context, userID string, theme core.Theme) error {
	if err := s.repo.UpdatePreferenceTheme(ctx, userID, theme); err != nil {
		return err
	}

	s.publish(ctx, prefs.ChangeEvent{
		Table: prefs.PreferencesTable,
		Kind:  prefs.ChangeUpdate,
		Row:   prefs.ChangeRow{UserID: userID, Theme: theme, HasTheme: true},
	})
	return nil
}

// publish announces a committed write. A feed failure only delays
// convergence of other sessions, so the write still succeeds.
func (s *PreferenceService) publish(ctx context.Context, ev prefs.ChangeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishChange(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish preference change",
			"table", ev.Table,
			"kind", string(ev.Kind),
			"user_id", ev.Row.UserID,
			"error", err)
	}
}
