package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"docflow-backend/internal/shared/server/respond"
)

const (
	defaultRateLimitGroup = "DEFAULT"
	// TriggerRateLimitGroup covers POST /ingestions/documents/:id/trigger.
	TriggerRateLimitGroup = "TRIGGER"

	// Buckets untouched this long are full again and can be forgotten.
	bucketIdleTTL  = 10 * time.Minute
	sweepThreshold = 1024
)

// RateLimitRule is a token bucket holding Burst tokens, refilled at Rate per second.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

func (r RateLimitRule) unlimited() bool { return r.Rate <= 0 || r.Burst <= 0 }

// RateLimitConfig maps request groups to rules. Groups without a rule pass.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter keeps one bucket per caller and group.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
}

type rateBucket struct {
	tokens float64
	seen   time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{buckets: make(map[string]*rateBucket), now: now}
}

// RateLimit throttles each authenticated user (or client IP before auth) per group.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.groupOf(c)
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		allowed, wait := cfg.Limiter.Allow(callerKey(c)+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}
		rejectRateLimited(c, wait)
	}
}

func (cfg RateLimitConfig) groupOf(c *gin.Context) string {
	if cfg.GroupFor == nil {
		return cfg.DefaultGroup
	}
	if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
		return g
	}
	return cfg.DefaultGroup
}

func callerKey(c *gin.Context) string {
	if id := strings.TrimSpace(UserIDFromContext(c)); id != "" {
		return "user:" + id
	}
	return "ip:" + c.ClientIP()
}

func rejectRateLimited(c *gin.Context, wait time.Duration) {
	if wait < time.Millisecond {
		wait = time.Second
	}
	seconds := int(math.Ceil(wait.Seconds()))
	c.Header("Retry-After", strconv.Itoa(seconds))
	respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Too many requests", gin.H{
		"retryAfterMs": wait.Milliseconds(),
	})
}

// Allow spends one token from key's bucket. When the bucket is empty it
// reports the time until the next token.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.unlimited() {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		if len(l.buckets) >= sweepThreshold {
			l.sweep(now)
		}
		b = &rateBucket{tokens: float64(rule.Burst), seen: now}
		l.buckets[key] = b
	}
	b.refill(now, rule)

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	missing := 1 - b.tokens
	return false, time.Duration(math.Ceil(missing/rule.Rate*1000)) * time.Millisecond
}

func (b *rateBucket) refill(now time.Time, rule RateLimitRule) {
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
		b.seen = now
	}
}

// sweep drops idle buckets; the caller holds l.mu.
func (l *RateLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.seen) > bucketIdleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *RateLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
