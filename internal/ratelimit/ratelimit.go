// Package ratelimit throttles API clients with per-source token buckets.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Config tunes the limiter.
type Config struct {
	RequestsPerMinute int           // sustained budget per source
	BurstSize         int           // short spikes above the budget
	CleanupInterval   time.Duration // how often idle buckets are dropped
}

// DefaultConfig is sized for a single dashboard session: one request per
// second sustained, with enough burst headroom for a page load that fans
// out into several API calls.
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		BurstSize:         10,
		CleanupInterval:   time.Minute,
	}
}

// FromRPS translates the RATE_LIMIT_RPS setting into a Config. Burst is
// twice the per-second rate; zero or negative keeps the defaults.
func FromRPS(rps int) Config {
	cfg := DefaultConfig()
	if rps > 0 {
		cfg.RequestsPerMinute = rps * 60
		cfg.BurstSize = rps * 2
	}
	return cfg
}

// Limiter tracks one token bucket per source key.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// New creates a limiter and starts its cleanup loop.
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := time.Now().Add(-2 * time.Minute)
			for key, b := range l.buckets {
				if b.seen.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Stop terminates the cleanup loop.
func (l *Limiter) Stop() {
	close(l.stop)
}

// Allow consumes one token from the key's bucket, reporting whether the
// request fits the budget.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, exists := l.buckets[key]
	if !exists {
		l.buckets[key] = &bucket{tokens: float64(l.cfg.BurstSize - 1), seen: now}
		return true
	}

	refill := now.Sub(b.seen).Seconds() * float64(l.cfg.RequestsPerMinute) / 60.0
	b.tokens = min(b.tokens+refill, float64(l.cfg.BurstSize))
	b.seen = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// exemptPath reports paths that never consume budget. Probes and metric
// scrapes arrive from the same sources as real traffic and must not
// starve it.
func exemptPath(path string) bool {
	return path == "/metrics" || path == "/health" || strings.HasPrefix(path, "/health/")
}

// Middleware limits requests by client IP. Admin calls get a bucket of
// their own per source, so a dashboard session and an admin script from
// the same machine do not compete.
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if exemptPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		key := c.ClientIP()
		if c.GetHeader("X-Admin-Secret") != "" {
			key = "admin:" + key
		}

		if !l.Allow(key) {
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please slow down.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
