package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/natours/tours-api/internal/api/handler"
	"github.com/natours/tours-api/internal/core/domain"
	"github.com/natours/tours-api/internal/core/ports"
)

// routerService implements the few AccountService calls the router tests
// reach; the embedded nil interface panics on anything else.
type routerService struct {
	ports.AccountService
	accounts map[string]*domain.Account // by token
}

func (s *routerService) ResolveSession(_ context.Context, token string) (*domain.Account, error) {
	if token == "" {
		return nil, domain.ErrNotLoggedIn
	}
	acc, ok := s.accounts[token]
	if !ok {
		return nil, domain.ErrSessionInvalid
	}
	return acc, nil
}

func (s *routerService) Login(_ context.Context, email, password string) (*ports.Session, error) {
	if email == "" || password == "" {
		return nil, domain.ErrMissingLogin
	}
	return nil, domain.ErrIncorrectLogin
}

func (s *routerService) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	for _, acc := range s.accounts {
		if acc.ID == id {
			return acc, nil
		}
	}
	return nil, errors.New("store exploded")
}

// memCounter counts hits per key without expiry.
type memCounter struct {
	mu   sync.Mutex
	hits map[string]int64
}

func (m *memCounter) Hit(_ context.Context, key string) (int64, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hits == nil {
		m.hits = map[string]int64{}
	}
	m.hits[key]++
	return m.hits[key], time.Now().Add(time.Hour), nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(testDependencies())
}

func testDependencies() Dependencies {
	svc := &routerService{accounts: map[string]*domain.Account{
		"user-token":  {ID: "acc-user", Username: "u", Email: "u@example.com", Role: domain.RoleUser},
		"guide-token": {ID: "acc-guide", Username: "g", Email: "g@example.com", Role: domain.RoleLeadGuide},
	}}
	reg := prometheus.NewRegistry()
	return Dependencies{
		Accounts:   svc,
		CookieTTL:  24 * time.Hour,
		Health:     map[string]handler.Pinger{},
		Registerer: reg,
		Gatherer:   reg,
		Log:        zerolog.Nop(),
	}
}

func do(t *testing.T, h http.Handler, method, path, token, body string) (*httptest.ResponseRecorder, errorResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env errorResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestRouter_ErrorEnvelopes(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name    string
		method  string
		path    string
		token   string
		body    string
		code    int
		status  string
		message string
	}{
		{
			name: "not logged in", method: http.MethodGet, path: "/api/v1/users/me",
			code: 401, status: "fail", message: "You are not logged in! Please log in to get access.",
		},
		{
			name: "invalid session", method: http.MethodGet, path: "/api/v1/users/me", token: "forged",
			code: 401, status: "fail", message: "Invalid or expired session. Please log in again.",
		},
		{
			name: "change password requires login", method: http.MethodPatch, path: "/api/v1/users/updatePassword", body: `{}`,
			code: 401, status: "fail", message: "You are not logged in! Please log in to get access.",
		},
		{
			name: "wrong role", method: http.MethodGet, path: "/api/v1/users", token: "user-token",
			code: 403, status: "fail", message: "You do not have permission to perform this action",
		},
		{
			name: "missing login fields", method: http.MethodPost, path: "/api/v1/users/login", body: `{"email":""}`,
			code: 400, status: "fail", message: "Please provide email and password",
		},
		{
			name: "internal failure hides details", method: http.MethodGet, path: "/api/v1/users/acc-missing", token: "guide-token",
			code: 500, status: "error", message: "Something went very wrong!",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, r, tt.method, tt.path, tt.token, tt.body)
			if rec.Code != tt.code || env.Status != tt.status || env.Message != tt.message {
				t.Fatalf("got %d %+v, want %d %s %q", rec.Code, env, tt.code, tt.status, tt.message)
			}
		})
	}
}

func TestRouter_GuardedRoutes(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := do(t, r, http.MethodGet, "/api/v1/users/me", "user-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}

	rec, _ = do(t, r, http.MethodGet, "/api/v1/users/acc-user", "guide-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("lead-guide get: expected 200, got %d", rec.Code)
	}

	rec, _ = do(t, r, http.MethodGet, "/api/v1/session", "forged", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("session probe must not fail, got %d", rec.Code)
	}
}

func TestRouter_SecurityHeadersAndRequestID(t *testing.T) {
	r := newTestRouter(t)

	rec, _ := do(t, r, http.MethodGet, "/health", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing security headers: %v", rec.Header())
	}
	if id := rec.Header().Get("X-Request-Id"); len(id) != 26 {
		t.Fatalf("expected a ULID request id, got %q", id)
	}
}

func TestRouter_BodyLimit(t *testing.T) {
	r := newTestRouter(t)

	big := `{"email":"` + strings.Repeat("a", 11*1024) + `","password":"x"}`
	rec, env := do(t, r, http.MethodPost, "/api/v1/users/login", "", big)
	if rec.Code != http.StatusRequestEntityTooLarge || env.Status != "fail" {
		t.Fatalf("expected 413 fail, got %d %+v", rec.Code, env)
	}
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t)
	do(t, r, http.MethodGet, "/health", "", "")

	rec, _ := do(t, r, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "natours_http_requests_total") {
		t.Fatalf("expected http metrics, got %d", rec.Code)
	}
}

func sessionStatuses(h http.Handler, remoteAddr string, forwardedFor []string) []int {
	codes := make([]int, 0, len(forwardedFor))
	for _, xff := range forwardedFor {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set(echo.HeaderXForwardedFor, xff)
		req.Header.Set(echo.HeaderXRealIP, xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	return codes
}

func TestRouter_RateLimitIgnoresForwardingHeadersFromClients(t *testing.T) {
	deps := testDependencies()
	deps.RateCounter = &memCounter{}
	deps.RateLimitMax = 2
	r := NewRouter(deps)

	got := sessionStatuses(r, "203.0.113.7:51000", []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"})
	want := []int{200, 200, 429, 429, 429}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("statuses %v, want %v", got, want)
		}
	}
}

func TestRouter_RateLimitTrustsConfiguredProxy(t *testing.T) {
	_, proxies, err := net.ParseCIDR("203.0.113.0/24")
	if err != nil {
		t.Fatal(err)
	}
	deps := testDependencies()
	counter := &memCounter{}
	deps.RateCounter = counter
	deps.RateLimitMax = 2
	deps.TrustedProxies = []*net.IPNet{proxies}
	r := NewRouter(deps)

	got := sessionStatuses(r, "203.0.113.7:51000", []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"})
	for _, code := range got {
		if code != http.StatusOK {
			t.Fatalf("distinct clients behind a trusted proxy must not share a bucket: %v", got)
		}
	}

	// A forwarded chain from an untrusted peer falls back to the peer address.
	got = sessionStatuses(r, "192.0.2.9:40000", []string{"198.51.100.1", "198.51.100.1", "198.51.100.1"})
	if got[2] != http.StatusTooManyRequests {
		t.Fatalf("untrusted peer must be limited on its own address: %v", got)
	}
	if counter.hits["192.0.2.9"] != 3 {
		t.Fatalf("expected peer address as key, got %v", counter.hits)
	}
}
