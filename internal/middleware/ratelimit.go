package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/property-listings/internal/config"
)

// fixedWindow counts hits in KEYS[1] and starts the window on the first
// hit. Returns the count and the window's remaining milliseconds.
var fixedWindow = redis.NewScript(`
	local n = redis.call('INCR', KEYS[1])
	if n == 1 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
	end
	local ttl = redis.call('PTTL', KEYS[1])
	if ttl < 0 then
		redis.call('PEXPIRE', KEYS[1], ARGV[1])
		ttl = tonumber(ARGV[1])
	end
	return { n, ttl }
`)

// RejectionCounter is implemented by *metrics.Metrics.
type RejectionCounter interface {
	RateLimited(policy string)
}

// RateLimiter enforces fixed-window per-IP limits. Counters live in Redis;
// without Redis, or when a Redis call fails, an in-process window is used
// so a single instance stays protected.
type RateLimiter struct {
	cfg     config.RateLimitConfig
	rdb     *redis.Client
	counter RejectionCounter
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	windows map[string]window
}

type window struct {
	count   int
	resetAt time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig, rdb *redis.Client, counter RejectionCounter, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{
		cfg:     cfg,
		rdb:     rdb,
		counter: counter,
		logger:  logger.Named("ratelimit"),
		now:     time.Now,
		windows: make(map[string]window),
	}
}

// Limit returns a middleware enforcing the named policy. A nil limiter
// limits nothing.
func (rl *RateLimiter) Limit(policyName string) echo.MiddlewareFunc {
	if rl == nil || !rl.cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	policy := rl.cfg.Policy(policyName)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			key := rl.cfg.Prefix + ":" + policy.Name + ":" + ip
			count, retry := rl.hit(c.Request().Context(), key, policy)

			remaining := policy.Limit - count
			if remaining < 0 {
				remaining = 0
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(policy.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if count <= policy.Limit {
				return next(c)
			}
			secs := int((retry + time.Second - 1) / time.Second)
			if secs < 1 {
				secs = 1
			}
			if rl.cfg.Debug {
				rl.logger.Info("blocked", zap.String("key", key), zap.Int("retry_after", secs))
			}
			if rl.counter != nil {
				rl.counter.RateLimited(policy.Name)
			}
			h.Set("Retry-After", strconv.Itoa(secs))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       retryMessage(secs),
				"retry_after": secs,
			})
		}
	}
}

func retryMessage(secs int) string {
	minutes := (secs + 59) / 60
	return fmt.Sprintf("Too many requests. Please try again in %d minute(s).", minutes)
}

// hit records one request and returns the count in the current window
// and the time until it resets.
func (rl *RateLimiter) hit(ctx context.Context, key string, p config.RatePolicy) (int, time.Duration) {
	if rl.rdb != nil {
		vals, err := fixedWindow.Run(ctx, rl.rdb, []string{key}, p.Window.Milliseconds()).Int64Slice()
		if err == nil && len(vals) == 2 {
			return int(vals[0]), time.Duration(vals[1]) * time.Millisecond
		}
		rl.logger.Warn("redis unavailable, using local window", zap.String("key", key), zap.Error(err))
	}
	return rl.hitLocal(key, p.Window)
}

func (rl *RateLimiter) hitLocal(key string, size time.Duration) (int, time.Duration) {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = window{resetAt: now.Add(size)}
		if len(rl.windows) > 10000 {
			rl.sweep(now)
		}
	}
	w.count++
	rl.windows[key] = w
	return w.count, w.resetAt.Sub(now)
}

func (rl *RateLimiter) sweep(now time.Time) {
	for k, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, k)
		}
	}
}
