package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rxocr/rxocr/internal/platform/auth"
)

func TestRateLimit_RequestsWithinBurst(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 1, BurstSize: 5}

	e := echo.New()
	handler := RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "1" {
			t.Errorf("request %d: expected X-RateLimit-Limit 1, got %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_RejectsOverBurst(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 2}

	e := echo.New()
	handler := RateLimit(cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	var lastErr error
	var lastRec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		lastRec = httptest.NewRecorder()
		lastErr = handler(e.NewContext(req, lastRec))
	}

	he, ok := lastErr.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", lastErr)
	}
	if lastRec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if lastRec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Error("expected X-RateLimit-Remaining 0")
	}
}

func TestRateLimit_KeysBySubject(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerSecond: 0.1, BurstSize: 1}

	e := echo.New()
	handler := RateLimit(cfg)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for _, sub := range []string{"alice", "bob"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		c.Set(auth.SubjectKey, sub)
		if err := handler(c); err != nil {
			t.Errorf("subject %s: expected its own bucket, got %v", sub, err)
		}
	}
}

func TestRateLimit_InvalidConfigFallsBack(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{})(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "20" {
		t.Errorf("expected default limit 20, got %q", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestLimiterStore_EvictsIdleClients(t *testing.T) {
	store := newLimiterStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 20})
	now := time.Now()
	store.now = func() time.Time { return now }

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		store.get(ip)
	}
	if got := store.size(); got != 3 {
		t.Fatalf("expected 3 buckets, got %d", got)
	}

	now = now.Add(30 * time.Second)
	store.get("10.0.0.1")

	now = now.Add(45 * time.Second)
	store.get("10.0.0.4")
	if got := store.size(); got != 2 {
		t.Errorf("expected idle buckets to be dropped, got %d", got)
	}
	if _, ok := store.limiters["10.0.0.2"]; ok {
		t.Error("expected 10.0.0.2 to be evicted")
	}
}

func TestLimiterStore_KeepsActiveBucketState(t *testing.T) {
	store := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	now := time.Now()
	store.now = func() time.Time { return now }

	first := store.get("client")
	now = now.Add(time.Second)
	if store.get("client") != first {
		t.Error("expected a recently seen client to keep its bucket")
	}
}
