package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onnwee/nowplaying/config"
)

func TestAdminAuthMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		cfg            config.Config
		reqUsername    string
		reqPassword    string
		reqToken       string
		reqBearer      string
		expectedStatus int
	}{
		{
			name:           "no auth configured - allows request",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid basic auth",
			cfg:            config.Config{AdminUsername: "admin", AdminPassword: "secret123"},
			reqUsername:    "admin",
			reqPassword:    "secret123",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid basic auth username",
			cfg:            config.Config{AdminUsername: "admin", AdminPassword: "secret123"},
			reqUsername:    "wrong",
			reqPassword:    "secret123",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "invalid basic auth password",
			cfg:            config.Config{AdminUsername: "admin", AdminPassword: "secret123"},
			reqUsername:    "admin",
			reqPassword:    "wrong",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "username without password leaves auth off",
			cfg:            config.Config{AdminUsername: "admin"},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid token header",
			cfg:            config.Config{AdminToken: "test-token-12345"},
			reqToken:       "test-token-12345",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "valid bearer token",
			cfg:            config.Config{AdminToken: "test-token-12345"},
			reqBearer:      "test-token-12345",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid token",
			cfg:            config.Config{AdminToken: "test-token-12345"},
			reqToken:       "wrong-token",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "token wins over bad basic auth",
			cfg:            config.Config{AdminUsername: "admin", AdminPassword: "secret123", AdminToken: "test-token-12345"},
			reqToken:       "test-token-12345",
			reqUsername:    "wrong",
			reqPassword:    "wrong",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := adminAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}), newAuthConfig(&tt.cfg))

			req := httptest.NewRequest(http.MethodPost, "/admin/tracker/start", nil)
			if tt.reqUsername != "" || tt.reqPassword != "" {
				req.SetBasicAuth(tt.reqUsername, tt.reqPassword)
			}
			if tt.reqToken != "" {
				req.Header.Set("X-Admin-Token", tt.reqToken)
			}
			if tt.reqBearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.reqBearer)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rr.Code)
			}
			if tt.expectedStatus == http.StatusUnauthorized && rr.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header on 401 response")
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := newIPRateLimiter(&rateLimiterConfig{
		enabled:       true,
		requestsPerIP: 3,
		window:        150 * time.Millisecond,
	})

	for i := 0; i < 3; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Errorf("request %d should be allowed", i+1)
		}
	}
	if limiter.allow("192.168.1.1") {
		t.Error("request 4 should be denied (bucket empty)")
	}
	if !limiter.allow("192.168.1.2") {
		t.Error("a different IP has its own bucket")
	}

	// One token refills every window/requestsPerIP.
	time.Sleep(80 * time.Millisecond)
	if !limiter.allow("192.168.1.1") {
		t.Error("request after refill should be allowed")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := newIPRateLimiter(&rateLimiterConfig{enabled: false, requestsPerIP: 1, window: time.Second})
	for i := 0; i < 100; i++ {
		if !limiter.allow("192.168.1.1") {
			t.Fatalf("request %d should be allowed when rate limiter is disabled", i+1)
		}
	}
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	limiter := newIPRateLimiter(&rateLimiterConfig{enabled: true, requestsPerIP: 1, window: time.Hour, maxClients: 2})
	if !limiter.allow("10.0.0.1") {
		t.Fatal("first request should pass")
	}
	limiter.allow("10.0.0.2")
	limiter.allow("10.0.0.3")
	if limiter.buckets.Len() != 2 {
		t.Fatalf("buckets = %d, want 2", limiter.buckets.Len())
	}
	// 10.0.0.1 was evicted and starts with a full bucket again.
	if !limiter.allow("10.0.0.1") {
		t.Error("evicted client should get a fresh bucket")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		laterAddr  string // RemoteAddr for the third request; same client, different port
	}{
		{name: "ipv4 with port", remoteAddr: "192.168.1.1:12345", laterAddr: "192.168.1.1:23456"},
		{name: "x-forwarded-for first hop", remoteAddr: "10.0.0.1:12345", forwarded: "203.0.113.1, 10.0.0.2", laterAddr: "10.0.0.9:1"},
		{name: "ipv6 with port", remoteAddr: "[2001:db8::1]:12345", laterAddr: "[2001:db8::1]:54321"},
		{name: "ipv6 forwarded without port", remoteAddr: "127.0.0.1:8080", forwarded: "2001:db8::42", laterAddr: "127.0.0.1:9090"},
		{name: "ipv4 forwarded without port", remoteAddr: "10.0.0.1:8080", forwarded: "192.0.2.1", laterAddr: "10.0.0.1:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := newIPRateLimiter(&rateLimiterConfig{enabled: true, requestsPerIP: 2, window: time.Minute})
			handler := rateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}), limiter)

			send := func(addr string) *httptest.ResponseRecorder {
				req := httptest.NewRequest(http.MethodPost, "/admin/tracker/start", nil)
				req.RemoteAddr = addr
				if tt.forwarded != "" {
					req.Header.Set("X-Forwarded-For", tt.forwarded)
				}
				rr := httptest.NewRecorder()
				handler.ServeHTTP(rr, req)
				return rr
			}

			for i := 0; i < 2; i++ {
				if rr := send(tt.remoteAddr); rr.Code != http.StatusOK {
					t.Fatalf("request %d: expected 200, got %d", i+1, rr.Code)
				}
			}
			rr := send(tt.laterAddr)
			if rr.Code != http.StatusTooManyRequests {
				t.Fatalf("request 3: expected 429, got %d", rr.Code)
			}
			if got := rr.Header().Get("Retry-After"); got != "60" {
				t.Errorf("Retry-After = %q, want 60", got)
			}
		})
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr, forwarded, want string
	}{
		{"192.168.1.1:12345", "", "192.168.1.1"},
		{"[2001:db8::1]:443", "", "2001:db8::1"},
		{"10.0.0.1:1", " 203.0.113.9 , 10.0.0.2", "203.0.113.9"},
		{"10.0.0.1:1", "[2001:db8::7]:8080", "2001:db8::7"},
		{"unix-socket", "", "unix-socket"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s|%s", tt.remoteAddr, tt.forwarded), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req); got != tt.want {
				t.Errorf("clientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadRateLimiterConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "")
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "")
	cfg := loadRateLimiterConfig()
	if !cfg.enabled || cfg.requestsPerIP != 10 || cfg.window != time.Minute {
		t.Errorf("defaults = %+v", cfg)
	}

	t.Setenv("RATE_LIMIT_ENABLED", "0")
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "5")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "abc")
	cfg = loadRateLimiterConfig()
	if cfg.enabled || cfg.requestsPerIP != 5 || cfg.window != time.Minute {
		t.Errorf("overrides = %+v", cfg)
	}
}

func TestCORSConfig(t *testing.T) {
	tests := []struct {
		name              string
		permissive        bool
		allowedOrigins    []string
		requestOrigin     string
		expectAllowOrigin string
		expectCredentials bool
	}{
		{
			name:              "permissive mode allows all origins",
			permissive:        true,
			requestOrigin:     "https://overlay.example.com",
			expectAllowOrigin: "*",
		},
		{
			name:              "restricted mode with matching origin",
			allowedOrigins:    []string{"https://example.com", "https://obs.example.com"},
			requestOrigin:     "https://example.com",
			expectAllowOrigin: "https://example.com",
			expectCredentials: true,
		},
		{
			name:           "restricted mode with non-matching origin",
			allowedOrigins: []string{"https://example.com"},
			requestOrigin:  "https://evil.com",
		},
		{
			name:              "wildcard subdomain",
			allowedOrigins:    []string{"*.example.com"},
			requestOrigin:     "https://obs.example.com",
			expectAllowOrigin: "https://obs.example.com",
			expectCredentials: true,
		},
		{
			name:              "wildcard also matches the bare domain",
			allowedOrigins:    []string{"*.example.com"},
			requestOrigin:     "https://example.com",
			expectAllowOrigin: "https://example.com",
			expectCredentials: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &corsConfig{permissive: tt.permissive, allowedOrigins: tt.allowedOrigins}
			handler := withCORSConfig(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}), cfg)

			req := httptest.NewRequest(http.MethodGet, "/status", nil)
			req.Header.Set("Origin", tt.requestOrigin)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.expectAllowOrigin {
				t.Errorf("expected Allow-Origin %q, got %q", tt.expectAllowOrigin, got)
			}
			if tt.expectCredentials && rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Error("expected Allow-Credentials: true for restricted mode")
			}
		})
	}
}

func TestCORSPreflightRequest(t *testing.T) {
	handler := withCORSConfig(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for OPTIONS request")
	}), &corsConfig{permissive: true})

	req := httptest.NewRequest(http.MethodOptions, "/admin/tracker/stop", nil)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", rr.Code)
	}
	if rr.Header().Get("Access-Control-Allow-Methods") == "" || rr.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("expected Allow-Methods and Allow-Headers on OPTIONS response")
	}
}

func TestLoadCORSConfig(t *testing.T) {
	tests := []struct {
		name           string
		env            string
		corsPermissive string
		origins        string
		wantPermissive bool
		wantOrigins    int
	}{
		{name: "default is permissive", wantPermissive: true},
		{name: "production is restricted", env: "production"},
		{name: "dev is permissive", env: "dev", wantPermissive: true},
		{name: "explicit override", env: "production", corsPermissive: "true", wantPermissive: true},
		{name: "origin list trimmed", env: "production", origins: " https://a.com , ,https://b.com", wantOrigins: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENV", tt.env)
			t.Setenv("CORS_PERMISSIVE", tt.corsPermissive)
			t.Setenv("CORS_ALLOWED_ORIGINS", tt.origins)
			cfg := loadCORSConfig()
			if cfg.permissive != tt.wantPermissive {
				t.Errorf("permissive = %v, want %v", cfg.permissive, tt.wantPermissive)
			}
			if len(cfg.allowedOrigins) != tt.wantOrigins {
				t.Errorf("origins = %q, want %d entries", cfg.allowedOrigins, tt.wantOrigins)
			}
		})
	}
}

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"https://example.com", "*.overlay.dev"}
	tests := []struct {
		origin string
		want   bool
	}{
		{"https://example.com", true},
		{"https://other.com", false},
		{"https://obs.overlay.dev", true},
		{"https://overlay.dev", true},
		{"https://evil-overlay.dev", false},
	}
	for _, tt := range tests {
		if got := isOriginAllowed(tt.origin, allowed); got != tt.want {
			t.Errorf("isOriginAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}
