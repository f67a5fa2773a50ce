package auth

import (
	"context"
	"sync"
	"time"

	"moneymanager/internal/core"
	"moneymanager/internal/prefs"
)

// Session is one live login. It satisfies the mirrors' auth port: after
// logout or expiry CurrentUser reports "no session" rather than an
// error, so in-flight mirror work quietly drops its result.
type Session struct {
	token     string
	user      core.User
	expiresAt time.Time
	scheme    *schemeHint
	mirrors   *prefs.Mirrors

	mu     sync.Mutex
	closed bool
}

func (s *Session) Token() string   { return s.token }
func (s *Session) User() core.User { return s.user }

// Mirrors exposes the session's preference mirrors to the HTTP layer.
func (s *Session) Mirrors() *prefs.Mirrors { return s.mirrors }

// CurrentUser implements the mirrors' auth port.
func (s *Session) CurrentUser(_ context.Context) (*core.User, error) {
	if !s.alive() {
		return nil, nil
	}
	u := s.user
	return &u, nil
}

// SetSchemeDark feeds the client's OS color-scheme hint into the
// session's scheme source.
func (s *Session) SetSchemeDark(dark bool) {
	s.scheme.setDark(dark)
}

func (s *Session) alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && time.Now().Before(s.expiresAt)
}

func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.mirrors.Close()
}
