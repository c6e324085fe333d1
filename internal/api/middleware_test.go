package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jaif/hal/internal/log"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		panic("boom")
	})
	handler := recoveryMiddleware(log.NewNop())(panicky)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := requestIDMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestIDFromContext(r.Context()) == "" {
			t.Error("request ID missing from context")
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
}

func TestRequestIDMiddlewarePreservesExisting(t *testing.T) {
	handler := requestIDMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "incoming-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "incoming-id" {
		t.Errorf("X-Request-ID = %q, want the incoming value", got)
	}
}

func TestCORSMiddleware(t *testing.T) {
	handler := corsMiddleware([]string{"http://localhost:3000"})(okHandler())

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("unknown origin gets no headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("preflight status = %d, want 204", rec.Code)
		}
	})
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(0, 3)

	for i := 0; i < 3; i++ {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request allowed after burst exhausted")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("different IP affected by another IP's bucket")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := newRateLimiter(0, 1)
	handler := rateLimitMiddleware(rl, false, log.NewNop())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header not set")
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		realIP     string
		forwarded  string
		trustProxy bool
		want       string
	}{
		{"remote addr only", "192.0.2.1:5000", "", "", false, "192.0.2.1"},
		{"proxy headers ignored when untrusted", "192.0.2.1:5000", "198.51.100.7", "", false, "192.0.2.1"},
		{"x-real-ip when trusted", "192.0.2.1:5000", "198.51.100.7", "", true, "198.51.100.7"},
		{"x-forwarded-for first hop", "192.0.2.1:5000", "", "198.51.100.8, 10.0.0.1", true, "198.51.100.8"},
		{"invalid header value falls back", "192.0.2.1:5000", "not-an-ip", "", true, "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := clientIP(req, tt.trustProxy); got != tt.want {
				t.Errorf("clientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStaticTokenAuthenticator(t *testing.T) {
	auth := StaticTokenAuthenticator{Token: "secret"}

	tests := []struct {
		name   string
		header string
		wantOK bool
	}{
		{"valid token", "Bearer secret", true},
		{"wrong token", "Bearer nope", false},
		{"missing header", "", false},
		{"not bearer", "Basic secret", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, ok := auth.CurrentUser(req)
			if ok != tt.wantOK {
				t.Errorf("CurrentUser() ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}

func TestStaticTokenAuthenticatorEmptyTokenRejectsAll(t *testing.T) {
	auth := StaticTokenAuthenticator{}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	if _, ok := auth.CurrentUser(req); ok {
		t.Error("empty configured token must reject every request")
	}
}
