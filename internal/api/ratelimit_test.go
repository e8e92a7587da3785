package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loreweaver/loreweaver/internal/log"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := newRateLimiter(1.0, 3)

	for i := range 3 {
		if !rl.allow("10.0.0.1") {
			t.Fatalf("request %d within burst should be allowed", i+1)
		}
	}
	if rl.allow("10.0.0.1") {
		t.Error("request beyond burst should be rejected")
	}
}

func TestRateLimiterIsolatesIPs(t *testing.T) {
	rl := newRateLimiter(1.0, 1)

	if !rl.allow("10.0.0.1") {
		t.Fatal("first IP should be allowed")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("second IP must have its own bucket")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := newRateLimiter(0.0, 1)
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rateLimitMiddleware(rl, false, log.NewNop())(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:1234"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request should pass, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be limited, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.9:443"

	if got := clientIP(req, false); got != "198.51.100.9" {
		t.Errorf("expected RemoteAddr host, got %q", got)
	}

	req.Header.Set("X-Real-IP", "192.0.2.44")
	if got := clientIP(req, false); got != "198.51.100.9" {
		t.Errorf("untrusted proxy headers must be ignored, got %q", got)
	}
	if got := clientIP(req, true); got != "192.0.2.44" {
		t.Errorf("expected X-Real-IP when trusted, got %q", got)
	}

	req.Header.Del("X-Real-IP")
	req.Header.Set("X-Forwarded-For", "192.0.2.55, 198.51.100.9")
	if got := clientIP(req, true); got != "192.0.2.55" {
		t.Errorf("expected first X-Forwarded-For entry, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "not-an-ip")
	if got := clientIP(req, true); got != "198.51.100.9" {
		t.Errorf("invalid header value must fall back to RemoteAddr, got %q", got)
	}
}
