package middlewares

import (
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/parishops/registry_backend/utils"
)

// RateLimiter is a fixed-window counter keyed by caller identity. State is
// in-process: one counter map guarded by a mutex, windows rolled over
// lazily on the next touch of a key. Callers only see Admit(key).
type RateLimiter struct {
	max    int
	window time.Duration

	mu      sync.Mutex
	entries map[string]*windowEntry

	// now is replaceable in tests.
	now func() time.Time
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// Decision is the outcome of one Admit call. RetryAfter is only set when
// the call is denied.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     maxRequests,
		window:  window,
		entries: make(map[string]*windowEntry),
		now:     time.Now,
	}
}

// Admit counts one request against key's current window. The first touch of
// a key (or the first touch after its window expired) starts a fresh window.
// Exactly max requests are admitted per window; the rest are denied with the
// time until the window resets.
func (rl *RateLimiter) Admit(key string) Decision {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Opportunistic sweep: roughly 1% of calls purge expired keys so the
	// map stays bounded. Lazy rollover alone keeps the counters correct.
	if rand.Intn(100) == 0 {
		rl.sweepLocked(now)
	}

	e, ok := rl.entries[key]
	if !ok || !now.Before(e.resetAt) {
		rl.entries[key] = &windowEntry{count: 1, resetAt: now.Add(rl.window)}
		return Decision{Allowed: true, Remaining: rl.max - 1}
	}

	e.count++
	if e.count > rl.max {
		return Decision{Allowed: false, RetryAfter: e.resetAt.Sub(now)}
	}
	return Decision{Allowed: true, Remaining: rl.max - e.count}
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, e := range rl.entries {
		if !now.Before(e.resetAt) {
			delete(rl.entries, key)
		}
	}
}

// KeyFunc derives the limiter key from the request.
type KeyFunc func(c *gin.Context) string

// ClientIPKey keys by caller network identity. Default policy for reads.
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// TokenScopedKey keys by network identity plus a short prefix of the
// presented capability token, so one abused token does not collaterally
// block unrelated traffic from the same address.
func TokenScopedKey(tokenParam string) KeyFunc {
	return func(c *gin.Context) string {
		return c.ClientIP() + "|" + utils.CapabilityTokenPrefix(c.Param(tokenParam))
	}
}

// RateLimitMiddleware denies with 429 and a Retry-After header once the
// key's window is exhausted.
func (rl *RateLimiter) RateLimitMiddleware(keyFn KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := rl.Admit(keyFn(c))
		if !d.Allowed {
			retryAfter := int(d.RetryAfter.Seconds() + 0.5)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       utils.ErrorRateLimited.Error(),
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
