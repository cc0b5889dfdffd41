package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noro/control-plane/internal/interfaces/http/dto"
)

// RateLimiter is a fixed-window counter keyed by client IP. Webhook and
// tenant endpoints share one limiter; Stripe retries survive a 429 because
// the provider backs off and redelivers.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
}

type window struct {
	remaining int
	openedAt  time.Time
}

// NewRateLimiter allows limit requests per period and evicts idle clients
// in the background.
func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
	}
	go rl.evictIdle()
	return rl
}

// Allow consumes one request from the key's current window, opening a new
// window when the previous one has elapsed.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[key]
	if !ok || now.Sub(w.openedAt) >= rl.period {
		rl.windows[key] = &window{remaining: rl.limit - 1, openedAt: now}
		return true
	}
	if w.remaining > 0 {
		w.remaining--
		return true
	}
	return false
}

// Remaining reports how many requests the key has left in its window.
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || time.Since(w.openedAt) >= rl.period {
		return rl.limit
	}
	return w.remaining
}

func (rl *RateLimiter) evictIdle() {
	ticker := time.NewTicker(rl.period * 2)
	defer ticker.Stop()

	for range ticker.C {
		rl.mu.Lock()
		now := time.Now()
		for key, w := range rl.windows {
			if now.Sub(w.openedAt) > rl.period*2 {
				delete(rl.windows, key)
			}
		}
		rl.mu.Unlock()
	}
}

// RateLimit rejects over-limit clients with 429 and advertises the limit
// in X-RateLimit headers.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				dto.NewErrorResponse("RATE_LIMIT_EXCEEDED", "Too many requests. Please try again later."))
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
		c.Next()
	}
}
