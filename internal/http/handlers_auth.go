package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"moneymanager/internal/auth"
	"moneymanager/internal/core"
)

type authPageData struct {
	Error string
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if s.sessionFrom(r) != nil {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		s.render(w, r, "login.html", authPageData{})
	case http.MethodPost:
		s.handleLoginPost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, "login.html", authPageData{Error: "Invalid request"})
		return
	}

	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")

	sess, err := s.auth.LogIn(r.Context(), email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, r, "login.html", authPageData{Error: "Invalid email or password"})
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Login failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		s.render(w, r, "login.html", authPageData{Error: "Something went wrong, try again"})
		return
	}

	s.setSessionCookie(w, sess.Token())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.render(w, r, "signup.html", authPageData{})
	case http.MethodPost:
		s.handleSignupPost(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSignupPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, "signup.html", authPageData{Error: "Invalid request"})
		return
	}

	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")
	confirm := r.Form.Get("confirm")

	if password != confirm {
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "signup.html", authPageData{Error: core.ErrPasswordMismatch.Error()})
		return
	}

	_, err := s.auth.SignUp(r.Context(), email, password)
	switch {
	case errors.Is(err, core.ErrInvalidEmail), errors.Is(err, core.ErrPasswordTooShort):
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.render(w, r, "signup.html", authPageData{Error: err.Error()})
		return
	case errors.Is(err, auth.ErrEmailTaken):
		w.WriteHeader(http.StatusConflict)
		s.render(w, r, "signup.html", authPageData{Error: "That email is already registered"})
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Signup failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		s.render(w, r, "signup.html", authPageData{Error: "Something went wrong, try again"})
		return
	}

	// Log the fresh account straight in.
	sess, err := s.auth.LogIn(r.Context(), email, password)
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	s.setSessionCookie(w, sess.Token())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		s.auth.LogOut(r.Context(), c.Value)
	}
	s.clearSessionCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
