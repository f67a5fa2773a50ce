// Package auth owns accounts and sessions. Each live session carries
// its own preference mirrors, started at login and torn down at logout,
// so every browser tab or device converges through the change feed
// rather than through shared in-process state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"moneymanager/internal/core"
	"moneymanager/internal/prefs"
	"moneymanager/internal/storage"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Repo is the slice of the storage layer the auth manager needs.
type Repo interface {
	CreateUser(ctx context.Context, u storage.UserRecord) error
	GetUserByEmail(ctx context.Context, email string) (storage.UserRecord, error)
	CreateSession(ctx context.Context, token, userID string, expiresAt time.Time) error
	GetSession(ctx context.Context, token string) (core.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// SessionDeps are the collaborators handed to each session's mirrors.
// The scheme source is created per session; everything else is shared.
type SessionDeps struct {
	Store prefs.PreferenceStore
	Feed  prefs.ChangeFeed
	Cache prefs.LocalCache
}

// Manager signs users up, logs them in and out, and keeps the set of
// live sessions with their running mirrors.
type Manager struct {
	repo Repo
	deps SessionDeps
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(repo Repo, deps SessionDeps, ttl time.Duration) *Manager {
	return &Manager{
		repo:     repo,
		deps:     deps,
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// SignUp registers a new account. The password is stored as a bcrypt
// hash; the plaintext never touches the repository.
func (m *Manager) SignUp(ctx context.Context, email, password string) (core.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := core.ValidateCredentials(email, password); err != nil {
		return core.User{}, err
	}

	if _, err := m.repo.GetUserByEmail(ctx, email); err == nil {
		return core.User{}, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrUserNotFound) {
		return core.User{}, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := core.User{ID: uuid.NewString(), Email: email}
	err = m.repo.CreateUser(ctx, storage.UserRecord{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User signed up", "user_id", user.ID)
	return user, nil
}

// LogIn verifies credentials, creates a session row and starts the
// session's mirrors.
func (m *Manager) LogIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	rec, err := m.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	expiresAt := time.Now().Add(m.ttl)
	if err := m.repo.CreateSession(ctx, token, rec.ID, expiresAt); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	sess := m.startSession(ctx, token, core.User{ID: rec.ID, Email: rec.Email}, expiresAt)
	if sess == nil {
		return nil, errors.New("auth manager closed")
	}

	slog.InfoContext(ctx, "User logged in", "user_id", rec.ID, "session_id", token)
	return sess, nil
}

// Resume returns the live session for a token, rebuilding mirrors after
// a process restart. Unknown or expired tokens return nil, nil.
func (m *Manager) Resume(ctx context.Context, token string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[token]; ok {
		m.mu.Unlock()
		if sess.alive() {
			return sess, nil
		}
		m.LogOut(ctx, token)
		return nil, nil
	}
	m.mu.Unlock()

	user, err := m.repo.GetSession(ctx, token)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}

	// Expiry was already checked by the query; keep the in-memory
	// session on the same clock.
	return m.startSession(ctx, token, user, time.Now().Add(m.ttl)), nil
}

// LogOut deletes the session row and closes its mirrors. Unknown
// tokens are a no-op.
func (m *Manager) LogOut(ctx context.Context, token string) {
	m.mu.Lock()
	sess := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()

	if sess != nil {
		sess.close()
	}

	if err := m.repo.DeleteSession(ctx, token); err != nil {
		slog.ErrorContext(ctx, "Failed to delete session", "session_id", token, "error", err)
	}
}

// Reap drops expired session rows and closes their in-memory state.
func (m *Manager) Reap(ctx context.Context) error {
	n, err := m.repo.DeleteExpiredSessions(ctx)
	if err != nil {
		return fmt.Errorf("reap sessions: %w", err)
	}

	m.mu.Lock()
	var stale []*Session
	for token, sess := range m.sessions {
		if !sess.alive() {
			stale = append(stale, sess)
			delete(m.sessions, token)
		}
	}
	m.mu.Unlock()

	for _, sess := range stale {
		sess.close()
	}

	if n > 0 || len(stale) > 0 {
		slog.InfoContext(ctx, "Reaped sessions", "rows", n, "in_memory", len(stale))
	}
	return nil
}

// Close tears down every live session. The manager accepts no logins
// afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

func (m *Manager) startSession(ctx context.Context, token string, user core.User, expiresAt time.Time) *Session {
	sess := &Session{
		token:     token,
		user:      user,
		expiresAt: expiresAt,
		scheme:    newSchemeHint(),
	}
	sess.mirrors = prefs.NewMirrors(sess, m.deps.Store, m.deps.Feed, m.deps.Cache, sess.scheme)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.sessions[token] = sess
	m.mu.Unlock()

	sess.mirrors.Start(ctx)
	return sess
}
