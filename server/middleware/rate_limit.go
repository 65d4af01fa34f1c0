// Package middleware holds the HTTP middleware shared across route groups.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/pachverse/sitechat/server/internal/errors"
)

// RateLimiter provides per-key rate limiting.
type RateLimiter struct {
	mu     sync.Mutex
	limits map[string]*limiterEntry
	limit  rate.Limit
	burst  int
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// staleAfter is how long an idle key's limiter is kept before pruning.
const staleAfter = 10 * time.Minute

// NewRateLimiter creates a limiter allowing perMinute requests per key,
// with a burst of the same size.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	return &RateLimiter{
		limits: make(map[string]*limiterEntry),
		limit:  rate.Every(time.Minute / time.Duration(perMinute)),
		burst:  perMinute,
	}
}

// Allow checks if a request is allowed for the given key.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, ok := rl.limits[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limits[key] = entry
		rl.pruneLocked(now)
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

// pruneLocked drops limiters idle longer than staleAfter. Called with the
// lock held, piggybacked on new-key creation so no background goroutine
// is needed.
func (rl *RateLimiter) pruneLocked(now time.Time) {
	for key, entry := range rl.limits {
		if now.Sub(entry.lastSeen) > staleAfter {
			delete(rl.limits, key)
		}
	}
}

// Middleware returns an echo middleware that limits by client IP and
// answers over-limit requests with 429.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.Allow(c.RealIP()) {
				chatErr := errors.RateLimitExceeded("too many requests, please slow down")
				return c.JSON(http.StatusTooManyRequests, map[string]any{
					"error": chatErr.Message,
					"code":  chatErr.Code,
				})
			}
			return next(c)
		}
	}
}
