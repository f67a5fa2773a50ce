// Package http serves the web UI: auth pages, the monthly dashboard,
// the spend-log form and the settings page driving the preference
// mirrors.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"moneymanager/internal/auth"
	"moneymanager/internal/cache"
	"moneymanager/internal/core"
	"moneymanager/internal/services"
	appweb "moneymanager/web"
)

const sessionCookie = "mm_session"

type Server struct {
	http.Server
	templates   *template.Template
	auth        *auth.Manager
	spend       *services.SpendService
	rateLimiter *rateLimiter

	summaryCache *cache.LRUCache[core.MonthSummary]
	listCache    *cache.LRUCache[[]core.SpendLog]
	cacheMgr     *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run
// http.Server.
func NewServer(addr string, authMgr *auth.Manager, spend *services.SpendService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		auth:         authMgr,
		spend:        spend,
		rateLimiter:  newRateLimiter(),
		summaryCache: cache.NewLRUCache[core.MonthSummary](100, 5*time.Minute),
		listCache:    cache.NewLRUCache[[]core.SpendLog](200, 5*time.Minute),
		cacheMgr:     cache.NewManager(),
	}

	s.cacheMgr.Register(s.summaryCache)
	s.cacheMgr.Register(s.listCache)
	s.cacheMgr.StartCleanup(10 * time.Minute)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/login", s.instrument(s.handleLogin))
	mux.HandleFunc("/signup", s.instrument(s.handleSignup))
	mux.HandleFunc("/logout", s.instrument(s.handleLogout))

	mux.HandleFunc("/", s.instrument(s.withSession(s.handleDashboard)))
	mux.HandleFunc("/spend", s.instrument(s.withSession(s.handleAddSpend)))
	mux.HandleFunc("/settings", s.instrument(s.withSession(s.handleSettings)))
	mux.HandleFunc("/settings/currency", s.instrument(s.withSession(s.handleSetCurrency)))
	mux.HandleFunc("/settings/theme", s.instrument(s.withSession(s.handleSetTheme)))

	return s
}

// Shutdown stops the cleanup goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheMgr.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// instrument adds security headers, rate limiting on writes, a request
// id and request logging.
func (s *Server) instrument(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := "req_" + uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		// Ask browsers to send the color-scheme client hint.
		w.Header().Set("Accept-CH", "Sec-CH-Prefers-Color-Scheme")
		w.Header().Set("Critical-CH", "Sec-CH-Prefers-Color-Scheme")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// withSession resolves the session cookie and feeds the color-scheme
// client hint into the session's scheme source before the handler runs.
// Requests without a live session are redirected to the login page.
func (s *Server) withSession(next func(http.ResponseWriter, *http.Request, *auth.Session)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.sessionFrom(r)
		if sess == nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		if hint := r.Header.Get("Sec-CH-Prefers-Color-Scheme"); hint != "" {
			sess.SetSchemeDark(hint == "dark")
		}

		next(w, r, sess)
	}
}

func (s *Server) sessionFrom(r *http.Request) *auth.Session {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	sess, err := s.auth.Resume(r.Context(), c.Value)
	if err != nil {
		slog.ErrorContext(r.Context(), "Session resume failed", "error", err)
		return nil
	}
	return sess
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "template", name, "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}

func (s *Server) cacheKey(userID string, year, month int) string {
	return userID + ":" + strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

func (s *Server) invalidateMonth(userID string, year, month int) {
	key := s.cacheKey(userID, year, month)
	s.summaryCache.Delete(key)
	s.listCache.Delete(key)
}
