package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/brightpath/pulse/internal/collector/middleware"
)

const testRateLimit = 3

func setupRateLimitRouter(t *testing.T, limit int, done chan struct{}) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RateLimiter(limit, time.Minute, done))
	r.POST("/api/v1/events", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})

	return r
}

func ingestRequest(t *testing.T, r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", http.NoBody)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(w, req)

	return w
}

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	r := setupRateLimitRouter(t, testRateLimit, done)

	w := ingestRequest(t, r, "1.2.3.4:1234")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	r := setupRateLimitRouter(t, testRateLimit, done)

	for i := 0; i < testRateLimit; i++ {
		w := ingestRequest(t, r, "1.2.3.4:1234")
		if w.Code != http.StatusAccepted {
			t.Fatalf("request %d: expected 202, got %d", i, w.Code)
		}
	}

	// This should be rate limited
	w := ingestRequest(t, r, "1.2.3.4:1234")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestRateLimiter_DifferentIPsIndependent(t *testing.T) {
	done := make(chan struct{})
	defer close(done)

	r := setupRateLimitRouter(t, 1, done)

	w1 := ingestRequest(t, r, "1.1.1.1:1234")
	if w1.Code != http.StatusAccepted {
		t.Fatalf("IP1: expected 202, got %d", w1.Code)
	}

	// Second IP should still be allowed
	w2 := ingestRequest(t, r, "2.2.2.2:1234")
	if w2.Code != http.StatusAccepted {
		t.Fatalf("IP2: expected 202, got %d", w2.Code)
	}
}
