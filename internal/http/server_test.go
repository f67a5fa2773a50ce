package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moneymanager/internal/auth"
	"moneymanager/internal/cache"
	"moneymanager/internal/feed"
	"moneymanager/internal/services"
	"moneymanager/internal/storage"
)

type testEnv struct {
	ts     *httptest.Server
	client *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	repo, err := storage.NewSQLiteRepository(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	changeFeed := feed.NewMemory()
	prefStore := services.NewPreferenceService(repo, changeFeed)
	authMgr := auth.NewManager(repo, auth.SessionDeps{
		Store: prefStore,
		Feed:  changeFeed,
		Cache: cache.NewFileStore(filepath.Join(dir, "prefs.json")),
	}, time.Hour)
	t.Cleanup(authMgr.Close)

	spendSvc := services.NewSpendService(repo, nil)

	srv := NewServer(":0", authMgr, spendSvc)
	ts := httptest.NewServer(srv.Server.Handler)
	t.Cleanup(ts.Close)
	t.Cleanup(func() { srv.cacheMgr.Stop(); srv.rateLimiter.stop() })

	jar := newCookieJar()
	return &testEnv{
		ts: ts,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// newCookieJar returns a jar that is happy with httptest's IP hosts.
func newCookieJar() http.CookieJar {
	return &simpleJar{cookies: make(map[string]*http.Cookie)}
}

type simpleJar struct {
	cookies map[string]*http.Cookie
}

func (j *simpleJar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	for _, c := range cookies {
		if c.MaxAge < 0 {
			delete(j.cookies, c.Name)
			continue
		}
		j.cookies[c.Name] = c
	}
}

func (j *simpleJar) Cookies(*url.URL) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		out = append(out, c)
	}
	return out
}

func (e *testEnv) get(t *testing.T, path string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.ts.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (e *testEnv) post(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.PostForm(e.ts.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	resp.Body.Close()
	return resp
}

func (e *testEnv) signUpAndLogIn(t *testing.T) {
	t.Helper()
	resp := e.post(t, "/signup", url.Values{
		"email":    {"a@example.com"},
		"password": {"correct horse"},
		"confirm":  {"correct horse"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("signup status = %d", resp.StatusCode)
	}
}

func TestDashboard_RequiresSession(t *testing.T) {
	e := newTestEnv(t)

	resp, _ := e.get(t, "/", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Errorf("redirect = %q, want /login", loc)
	}
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, _ := e.get(t, path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestSignupLoginDashboard(t *testing.T) {
	e := newTestEnv(t)
	e.signUpAndLogIn(t)

	resp, body := e.get(t, "/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "a@example.com") {
		t.Error("dashboard missing user email")
	}
	// Fresh accounts see the default dollar formatting.
	if !strings.Contains(body, "$0.00") {
		t.Error("dashboard missing default-currency total")
	}
}

func TestSignup_PasswordMismatch(t *testing.T) {
	e := newTestEnv(t)

	resp := e.post(t, "/signup", url.Values{
		"email":    {"a@example.com"},
		"password": {"correct horse"},
		"confirm":  {"battery staple"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	e := newTestEnv(t)
	e.signUpAndLogIn(t)
	e.post(t, "/logout", nil)

	resp := e.post(t, "/login", url.Values{
		"email":    {"a@example.com"},
		"password": {"battery staple"},
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAddSpend_ShowsOnDashboard(t *testing.T) {
	e := newTestEnv(t)
	e.signUpAndLogIn(t)

	today := time.Now().Format("2006-01-02")
	resp := e.post(t, "/spend", url.Values{
		"date":           {today},
		"category":       {"Groceries"},
		"amount":         {"12,50"},
		"payment_method": {"card"},
		"note":           {"weekly shop"},
	})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("spend status = %d", resp.StatusCode)
	}

	_, body := e.get(t, "/", nil)
	if !strings.Contains(body, "Groceries") || !strings.Contains(body, "$12.50") {
		t.Errorf("dashboard missing new entry:\n%s", body)
	}
	if !strings.Contains(body, `id="groceries"`) {
		t.Error("dashboard missing category anchor")
	}
}

func TestAddSpend_InvalidAmount(t *testing.T) {
	e := newTestEnv(t)
	e.signUpAndLogIn(t)

	resp := e.post(t, "/spend", url.Values{
		"category":       {"Groceries"},
		"amount":         {"-3"},
		"payment_method": {"card"},
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestSetCurrency_ChangesFormatting(t *testing.T) {
	e := newTestEnv(t)
	e.signUpAndLogIn(t)

	resp := e.post(t, "/settings/currency", url.Values{"currency": {"EUR"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	_, body := e.get(t, "/", nil)
	if !strings.Contains(body, "€0.00") {
		t.Errorf("dashboard not using euro symbol:\n%s", body)
	}
}

func TestSetTheme_AppliesDocumentClass(t *testing.T) {
	e := newTestEnv(t)
	e.signUpAndLogIn(t)

	resp := e.post(t, "/settings/theme", url.Values{"theme": {"dark"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	_, body := e.get(t, "/", nil)
	if !strings.Contains(body, `class="dark"`) {
		t.Error("dashboard not carrying the dark class")
	}

	resp = e.post(t, "/settings/theme", url.Values{"theme": {"neon"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("invalid theme status = %d, want 422", resp.StatusCode)
	}
}

func TestSystemTheme_FollowsClientHint(t *testing.T) {
	e := newTestEnv(t)
	e.signUpAndLogIn(t)

	// Default theme is system; the client hint decides the class.
	_, body := e.get(t, "/", map[string]string{"Sec-CH-Prefers-Color-Scheme": "dark"})
	if !strings.Contains(body, `class="dark"`) {
		t.Error("system theme ignored dark hint")
	}

	_, body = e.get(t, "/", map[string]string{"Sec-CH-Prefers-Color-Scheme": "light"})
	if !strings.Contains(body, `class="light"`) {
		t.Error("system theme ignored light hint")
	}
}

func TestLogout_EndsSession(t *testing.T) {
	e := newTestEnv(t)
	e.signUpAndLogIn(t)

	resp := e.post(t, "/logout", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp, _ = e.get(t, "/", nil)
	if resp.StatusCode != http.StatusSeeOther {
		t.Errorf("dashboard after logout status = %d, want redirect", resp.StatusCode)
	}
}

func TestRateLimiter_Allows60PerMinute(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Error("request 61 allowed")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("other client rejected")
	}
}
