package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestAllow_BurstThenDeny(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 5, CleanupInterval: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 5; i++ {
		if !limiter.Allow("10.1.1.1") {
			t.Errorf("Request %d should fit the burst", i)
		}
	}
	if limiter.Allow("10.1.1.1") {
		t.Error("Request past the burst should be denied")
	}

	// One token refills per second at 60/min.
	time.Sleep(1100 * time.Millisecond)
	if !limiter.Allow("10.1.1.1") {
		t.Error("Request after refill should be allowed")
	}
}

func TestAllow_SourcesAreIndependent(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 3, CleanupInterval: time.Minute})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		limiter.Allow("10.1.1.1")
	}
	if limiter.Allow("10.1.1.1") {
		t.Error("Exhausted source should be denied")
	}
	if !limiter.Allow("10.1.1.2") {
		t.Error("Fresh source should be allowed")
	}
}

func TestFromRPS(t *testing.T) {
	cfg := FromRPS(5)
	if cfg.RequestsPerMinute != 300 {
		t.Errorf("RequestsPerMinute = %d, want 300", cfg.RequestsPerMinute)
	}
	if cfg.BurstSize != 10 {
		t.Errorf("BurstSize = %d, want 10", cfg.BurstSize)
	}

	// Zero falls back to the defaults.
	if got := FromRPS(0); got != DefaultConfig() {
		t.Errorf("FromRPS(0) = %+v, want defaults", got)
	}
}

func newLimitedRouter(l *Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(l.Middleware())
	handler := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/v1/tenants/:id", handler)
	r.GET("/health/live", handler)
	r.GET("/metrics", handler)
	return r
}

func TestMiddleware_ExemptsProbesAndScrapes(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})
	defer limiter.Stop()
	r := newLimitedRouter(limiter)

	// Exhaust the single token on an API path.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/ten_1", nil))
		if i == 1 && w.Code != http.StatusTooManyRequests {
			t.Fatalf("Second API request = %d, want 429", w.Code)
		}
	}

	// Probes and scrapes still pass.
	for _, path := range []string{"/health/live", "/metrics"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200 while limited", path, w.Code)
		}
	}
}

func TestMiddleware_AdminBucketIsSeparate(t *testing.T) {
	limiter := New(Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})
	defer limiter.Stop()
	r := newLimitedRouter(limiter)

	// Exhaust the plain bucket for this source.
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/ten_1", nil))
	}

	req := httptest.NewRequest("GET", "/v1/tenants/ten_1", nil)
	req.Header.Set("X-Admin-Secret", "s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Admin request = %d, want 200 on its own bucket", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/tenants/ten_1", nil))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Plain request = %d, want 429 while its bucket is empty", w.Code)
	}
}
