// ratelimit.go implements per-session rate limiting using a token bucket algorithm.
//
// How token bucket works:
// - Each session gets a "bucket" with N tokens (the hourly limit)
// - Each request consumes 1 token
// - Tokens refill at a steady rate (N tokens per hour)
// - If the bucket is empty, the request is rejected with 429 Too Many Requests
package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Shimizu-Technology/docsight-api/internal/models"
)

// RateLimiter tracks request rates per session.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   int
	now     func() time.Time

	stop chan struct{}
	once sync.Once
}

// bucket tracks the token state for a single session.
type bucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// allowResult contains the result of a rate limit check,
// including header information for the response.
type allowResult struct {
	allowed   bool
	remaining float64
	limit     float64
}

// NewRateLimiter creates a limiter allowing limitPerHour requests per session.
func NewRateLimiter(limitPerHour int) *RateLimiter {
	if limitPerHour < 1 {
		limitPerHour = 1
	}
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limit:   limitPerHour,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Stop ends the background cleanup.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

// RateLimit returns Gin middleware that enforces per-session limits. It must
// run after SessionAuth; requests without a session pass through.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := GetSession(c)
		if s == nil {
			c.Next()
			return
		}

		result := rl.allow(s.ID)
		// Go Pattern: these headers follow the draft RFC for rate limiting.
		c.Header("X-RateLimit-Limit", formatFloat(result.limit))
		if !result.allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
				Error:   "rate_limit_exceeded",
				Message: "Rate limit exceeded. Try again later.",
				Code:    http.StatusTooManyRequests,
			})
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", formatFloat(result.remaining))

		c.Next()
	}
}

// allow checks if a request should be allowed, consuming a token if so.
func (rl *RateLimiter) allow(key string) allowResult {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     float64(rl.limit),
			maxTokens:  float64(rl.limit),
			refillRate: float64(rl.limit) / 3600.0,
			lastRefill: now,
		}
		rl.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now

	if b.tokens < 1.0 {
		return allowResult{allowed: false, remaining: 0, limit: b.maxTokens}
	}

	b.tokens--
	return allowResult{allowed: true, remaining: b.tokens, limit: b.maxTokens}
}

// cleanup periodically removes stale buckets to prevent memory leaks.
func (rl *RateLimiter) cleanup() {
	// Go Pattern: time.Ticker fires at a fixed interval. Always defer
	// ticker.Stop() so the ticker is released.
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for id, b := range rl.buckets {
				if now.Sub(b.lastRefill) > time.Hour {
					delete(rl.buckets, id)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// formatFloat converts a float to a string for headers.
func formatFloat(f float64) string {
	return fmt.Sprintf("%.0f", f)
}
