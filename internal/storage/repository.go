// Package storage is the SQLite persistence layer: users, sessions,
// spend logs and the single-row-per-user preferences table.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"moneymanager/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- users ---

// UserRecord is a stored user together with its credential hash. The
// hash never leaves the auth package.
type UserRecord struct {
	ID           string
	Email        string
	PasswordHash string
}

var ErrUserNotFound = errors.New("user not found")

func (r *SQLiteRepository) CreateUser(ctx context.Context, u UserRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID)
	return nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (UserRecord, error) {
	var u UserRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash FROM users WHERE email = ?`,
		email).Scan(&u.ID, &u.Email, &u.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email FROM users WHERE id = ?`,
		id).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// --- sessions ---

var ErrSessionNotFound = errors.New("session not found")

func (r *SQLiteRepository) CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns the user behind a live session token. Expired
// tokens behave as absent.
func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.email
		 FROM sessions s JOIN users u ON u.id = s.user_id
		 WHERE s.token = ? AND s.expires_at > ?`,
		token, time.Now().UTC()).Scan(&u.ID, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrSessionNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get session: %w", err)
	}
	return u, nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions reaps dead tokens and reports how many went.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// --- user preferences ---

// FindPreference returns the user's preference row, or
// core.ErrPreferenceNotFound when none exists. Absence is a normal
// state: the caller falls back to defaults.
func (r *SQLiteRepository) FindPreference(ctx context.Context, userID string) (core.UserPreference, error) {
	var p core.UserPreference
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, currency, theme FROM user_preferences WHERE user_id = ?`,
		userID).Scan(&p.UserID, &p.Currency, &p.Theme)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserPreference{}, core.ErrPreferenceNotFound
	}
	if err != nil {
		return core.UserPreference{}, fmt.Errorf("find preference: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) InsertPreference(ctx context.Context, p core.UserPreference) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, currency, theme) VALUES (?, ?, ?)`,
		p.UserID, p.Currency, string(p.Theme))
	if err != nil {
		return fmt.Errorf("insert preference: %w", err)
	}

	slog.InfoContext(ctx, "Preference row created",
		"user_id", p.UserID,
		"currency", p.Currency,
		"theme", string(p.Theme))
	return nil
}

func (r *SQLiteRepository) UpdatePreferenceCurrency(ctx context.Context, userID, currency string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_preferences SET currency = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		currency, userID)
	if err != nil {
		return fmt.Errorf("update preference currency: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) UpdatePreferenceTheme(ctx context.Context, userID string, theme core.Theme) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE user_preferences SET theme = ?, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`,
		string(theme), userID)
	if err != nil {
		return fmt.Errorf("update preference theme: %w", err)
	}
	return nil
}

// --- spend logs ---

var ErrSpendLogNotFound = errors.New("spend log not found")

func (r *SQLiteRepository) CreateSpendLog(ctx context.Context, s core.SpendLog) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO spend_logs (user_id, category, amount_cents, spend_date, payment_method, note)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.UserID, s.Category, s.Amount.Cents, s.Date.UTC(), s.PaymentMethod, s.Note)
	if err != nil {
		return 0, fmt.Errorf("create spend log: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("spend log id: %w", err)
	}

	slog.InfoContext(ctx, "Spend log saved",
		"spend_id", id,
		"user_id", s.UserID,
		"category", s.Category,
		"amount_cents", s.Amount.Cents)
	return id, nil
}

func (r *SQLiteRepository) GetSpendLog(ctx context.Context, id int64) (core.SpendLog, error) {
	var (
		s    core.SpendLog
		date time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, category, amount_cents, spend_date, payment_method, note
		 FROM spend_logs WHERE id = ?`,
		id).Scan(&s.ID, &s.UserID, &s.Category, &s.Amount.Cents, &date, &s.PaymentMethod, &s.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return core.SpendLog{}, ErrSpendLogNotFound
	}
	if err != nil {
		return core.SpendLog{}, fmt.Errorf("get spend log: %w", err)
	}
	s.Date = core.Date{Time: date}
	return s, nil
}

// ListSpendLogs returns a user's entries for one month, newest first.
func (r *SQLiteRepository) ListSpendLogs(ctx context.Context, userID string, year, month int) ([]core.SpendLog, error) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, category, amount_cents, spend_date, payment_method, note
		 FROM spend_logs
		 WHERE user_id = ? AND spend_date >= ? AND spend_date < ?
		 ORDER BY spend_date DESC, id DESC`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list spend logs: %w", err)
	}
	defer rows.Close()

	var logs []core.SpendLog
	for rows.Next() {
		var (
			s    core.SpendLog
			date time.Time
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Category, &s.Amount.Cents, &date, &s.PaymentMethod, &s.Note); err != nil {
			return nil, fmt.Errorf("scan spend log: %w", err)
		}
		s.Date = core.Date{Time: date}
		logs = append(logs, s)
	}
	return logs, rows.Err()
}

// MonthSummary aggregates one month of a user's spending by category.
func (r *SQLiteRepository) MonthSummary(ctx context.Context, userID string, year, month int) (core.MonthSummary, error) {
	summary := core.MonthSummary{Year: year, Month: month}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM spend_logs
		 WHERE user_id = ? AND spend_date >= ? AND spend_date < ?`,
		userID, from, to).Scan(&summary.Total.Cents)
	if err != nil {
		return summary, fmt.Errorf("month total: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) AS total
		 FROM spend_logs
		 WHERE user_id = ? AND spend_date >= ? AND spend_date < ?
		 GROUP BY category
		 ORDER BY total DESC`,
		userID, from, to)
	if err != nil {
		return summary, fmt.Errorf("category sums: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return summary, fmt.Errorf("scan category sum: %w", err)
		}
		summary.ByCategory = append(summary.ByCategory, ca)
	}
	return summary, rows.Err()
}

// --- backup bookkeeping ---

// GetPendingBackup returns ids of spend logs not yet exported, oldest
// first, capped at limit.
func (r *SQLiteRepository) GetPendingBackup(ctx context.Context, limit int) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM spend_logs WHERE backed_up = 0 ORDER BY id LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("get pending backup: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan pending id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SQLiteRepository) MarkBackedUp(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE spend_logs SET backed_up = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark backed up: %w", err)
	}

	slog.InfoContext(ctx, "Spend log marked as backed up", "spend_id", id)
	return nil
}
