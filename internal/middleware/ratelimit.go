package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	appErrors "github.com/Rzouga01/LearnHub-sub001/pkg/errors"
	"github.com/Rzouga01/LearnHub-sub001/pkg/response"
)

// fixed window counter: returns {count, remaining window in ms}
const rateLimitScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`

const maxLocalLimiters = 10000

type rateLimitObserver interface {
	ObserveRateLimited()
}

// RateLimitConfig configures a per-client limiter.
type RateLimitConfig struct {
	Prefix string
	Limit  int
	Window time.Duration
}

// RateLimiter throttles requests per client IP. It counts in Redis when a
// client is available so every replica shares the window, and falls back to
// an in-process token bucket otherwise or when Redis errors.
type RateLimiter struct {
	client   *redis.Client
	script   *redis.Script
	cfg      RateLimitConfig
	logger   *zap.Logger
	observer rateLimitObserver

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter builds a limiter. A nil client uses only the local fallback.
func NewRateLimiter(client *redis.Client, cfg RateLimitConfig, logger *zap.Logger, observer rateLimitObserver) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ratelimit:"
	}
	return &RateLimiter{
		client:   client,
		script:   redis.NewScript(rateLimitScript),
		cfg:      cfg,
		logger:   logger,
		observer: observer,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Handler returns the gin middleware.
func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.cfg.Limit <= 0 || l.cfg.Window <= 0 {
			c.Next()
			return
		}
		key := c.ClientIP()
		allowed, remaining, retryAfter := l.allow(c.Request.Context(), key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			if l.observer != nil {
				l.observer.ObserveRateLimited()
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, "too many submissions, try again later"))
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allow(ctx context.Context, key string) (bool, int, time.Duration) {
	if l.client != nil {
		allowed, remaining, retryAfter, err := l.allowRedis(ctx, key)
		if err == nil {
			return allowed, remaining, retryAfter
		}
		l.logger.Warn("redis rate limit failed, using local limiter", zap.Error(err))
	}
	return l.allowLocal(key)
}

func (l *RateLimiter) allowRedis(ctx context.Context, key string) (bool, int, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	window := l.cfg.Window.Milliseconds()
	if window <= 0 {
		window = 1
	}
	values, err := l.script.Run(ctx, l.client, []string{l.cfg.Prefix + key}, window).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(values) != 2 {
		return false, 0, 0, redis.Nil
	}
	count, ttl := int(values[0]), time.Duration(values[1])*time.Millisecond
	if ttl < 0 {
		ttl = l.cfg.Window
	}
	remaining := l.cfg.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.cfg.Limit, remaining, ttl, nil
}

func (l *RateLimiter) allowLocal(key string) (bool, int, time.Duration) {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= maxLocalLimiters {
			l.limiters = make(map[string]*rate.Limiter)
		}
		every := l.cfg.Window / time.Duration(l.cfg.Limit)
		limiter = rate.NewLimiter(rate.Every(every), l.cfg.Limit)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()

	now := time.Now()
	reservation := limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0, l.cfg.Window
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, 0, delay
	}
	remaining := int(limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining, 0
}
