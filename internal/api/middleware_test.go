package api

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/relife-project/technical-service/internal/auth"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestRateLimitMiddleware_AllowsWithinLimit(t *testing.T) {
	handler := RateLimitMiddleware(5)(http.HandlerFunc(okHandler))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
}

func TestRateLimitMiddleware_BlocksOverLimit(t *testing.T) {
	handler := RateLimitMiddleware(3)(http.HandlerFunc(okHandler))

	// Source ports vary between connections from the same client.
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:500" + string(rune('0'+i))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:6000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimitMiddleware_KeysByClientAddress(t *testing.T) {
	handler := RateLimitMiddleware(2)(http.HandlerFunc(okHandler))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("10.0.0.2 should not be rate-limited, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("10.0.0.1 should be rate-limited, got %d", w.Code)
	}
}

func TestRateLimitMiddleware_Disabled(t *testing.T) {
	handler := RateLimitMiddleware(0)(http.HandlerFunc(okHandler))

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	a := &fakeAuth{identities: map[string]*auth.Identity{"tok": {UserID: "user-42"}}}

	called := false
	inner := RequireAuth(a, false, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusAccepted)
	}))
	handler := RequestLogger(logger)(inner)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Error("inner handler was not called")
	}
	if w.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", w.Code)
	}
	out := buf.String()
	for _, want := range []string{"path=/test", "status=202", "caller=user-42"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}

func TestOptionalAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &fakeAuth{identities: map[string]*auth.Identity{"tok": {UserID: "user-1"}}}

	var seen string
	handler := OptionalAuth(a, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = callerID(r)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		status int
		caller string
	}{
		{"anonymous", "", http.StatusOK, ""},
		{"valid token", "Bearer tok", http.StatusOK, "user-1"},
		{"lowercase scheme", "bearer tok", http.StatusOK, "user-1"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, ""},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, w.Code)
			}
			if seen != tt.caller {
				t.Errorf("expected caller %q, got %q", tt.caller, seen)
			}
			if tt.status == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Error("expected WWW-Authenticate: Bearer")
			}
		})
	}
}

func TestRequireAuth_PassesRoleFlag(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := &fakeAuth{identities: map[string]*auth.Identity{"tok": {UserID: "user-1"}}}

	for _, withRoles := range []bool{true, false} {
		handler := RequireAuth(a, withRoles, logger)(http.HandlerFunc(okHandler))
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Authorization", "Bearer tok")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if len(a.withRoles) != 2 || !a.withRoles[0] || a.withRoles[1] {
		t.Errorf("unexpected role flags %v", a.withRoles)
	}
}

func TestRateLimitIgnoresForwardedHeadersByDefault(t *testing.T) {
	router := NewRouter(Deps{
		Auth:               &fakeAuth{},
		RateLimitPerMinute: 2,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	passed := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code == http.StatusOK {
			passed++
		}
	}
	if passed != 2 {
		t.Errorf("expected 2 requests through, got %d", passed)
	}
}

func TestRateLimitUsesForwardedHeadersWhenTrusted(t *testing.T) {
	router := NewRouter(Deps{
		Auth:               &fakeAuth{},
		RateLimitPerMinute: 1,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		TrustProxyHeaders:  true,
	})

	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := httptest.NewRequest("GET", "/health", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		req.Header.Set("X-Forwarded-For", client)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", client, w.Code)
		}
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := newRateLimiter(2)
	start := time.Now()

	for i := 0; i < 100; i++ {
		if ok, _ := rl.allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256), start); !ok {
			t.Fatalf("client %d: unexpectedly limited", i)
		}
	}
	if got := rl.size(); got != 100 {
		t.Fatalf("expected 100 tracked clients, got %d", got)
	}

	// Once the window has passed, the next request sweeps everyone idle.
	if ok, _ := rl.allow("10.9.9.9", start.Add(rl.window+time.Second)); !ok {
		t.Fatal("expected request after the window to pass")
	}
	if got := rl.size(); got != 1 {
		t.Errorf("expected idle clients evicted, %d still tracked", got)
	}
}

func TestRateLimiterRetryAfter(t *testing.T) {
	rl := newRateLimiter(1)
	now := time.Now()

	if ok, _ := rl.allow("a", now); !ok {
		t.Fatal("first request should pass")
	}
	ok, retry := rl.allow("a", now.Add(20*time.Second))
	if ok {
		t.Fatal("second request should be limited")
	}
	if retry != 40*time.Second {
		t.Errorf("expected retry after 40s, got %v", retry)
	}
}
