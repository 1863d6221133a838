package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pulseboard/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// bucketScript keeps one token bucket per hash key.
// ARGV: rate, capacity, now (seconds), cost. Returns {allowed, remaining, reset_after}.
// Fractions are returned as strings because Redis truncates Lua numbers to integers.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1]) or capacity
local ts = tonumber(state[2]) or now

tokens = math.min(capacity, tokens + math.max(0, now - ts) * rate)
if tokens < cost then
  return {0, tostring(tokens), tostring((cost - tokens) / rate)}
end

tokens = tokens - cost
redis.call("HSET", key, "tokens", tostring(tokens), "ts", tostring(now))
redis.call("EXPIRE", key, math.ceil(capacity / rate * 2))
return {1, tostring(tokens), "0"}
`)

const localIdleAfter = 10 * time.Minute

type RateLimitConfig struct {
	// Scope separates the buckets of differently limited routes.
	Scope             string
	RequestsPerSecond int
	Burst             int
	// KeyFunc picks the bucket of a request. Defaults to the client IP.
	KeyFunc func(*gin.Context) string
}

// RateLimiter enforces a token bucket shared by every instance through Redis and
// degrades to an in-process bucket per key while Redis is unreachable.
type RateLimiter struct {
	rdb redis.UniversalClient
	cfg RateLimitConfig

	mu        sync.Mutex
	local     map[string]*localBucket
	lastSweep time.Time
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type decision struct {
	allowed    bool
	remaining  float64
	resetAfter float64
}

func NewRateLimiter(rdb redis.UniversalClient, cfg RateLimitConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	return &RateLimiter{
		rdb:       rdb,
		cfg:       cfg,
		local:     make(map[string]*localBucket),
		lastSweep: time.Now(),
	}
}

// RateLimitMiddleware limits requests per client IP within scope.
func RateLimitMiddleware(rdb redis.UniversalClient, scope string, requestsPerSecond int) gin.HandlerFunc {
	return NewRateLimiter(rdb, RateLimitConfig{Scope: scope, RequestsPerSecond: requestsPerSecond}).Middleware()
}

// IdentityOrIP buckets authenticated requests per user and anonymous ones per IP.
// It must run after SessionMiddleware to see the identity.
func IdentityOrIP(c *gin.Context) string {
	if id, ok := IdentityFrom(c); ok && id.ID != "" {
		return "user:" + id.ID
	}
	return "ip:" + c.ClientIP()
}

func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:" + l.cfg.Scope + ":" + l.cfg.KeyFunc(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 100*time.Millisecond)
		d, err := l.allowRedis(ctx, key)
		cancel()
		if err != nil {
			logger.Warn("redis rate limit failed, using local limiter",
				zap.String("key", key),
				zap.Error(err))
			d = l.allowLocal(key)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.cfg.RequestsPerSecond))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(d.remaining)))
		if !d.allowed {
			reset := time.Now().Add(time.Duration(d.resetAfter * float64(time.Second)))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) allowRedis(ctx context.Context, key string) (decision, error) {
	now := float64(time.Now().UnixMicro()) / 1e6
	res, err := bucketScript.Run(ctx, l.rdb, []string{key},
		l.cfg.RequestsPerSecond, l.cfg.Burst, strconv.FormatFloat(now, 'f', 6, 64), 1).Slice()
	if err != nil {
		return decision{}, err
	}
	if len(res) != 3 {
		return decision{}, fmt.Errorf("unexpected rate limit reply %v", res)
	}
	allowed, ok := res[0].(int64)
	if !ok {
		return decision{}, fmt.Errorf("unexpected rate limit flag %v", res[0])
	}
	return decision{
		allowed:    allowed == 1,
		remaining:  toFloat(res[1]),
		resetAfter: toFloat(res[2]),
	}, nil
}

func (l *RateLimiter) allowLocal(key string) decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > localIdleAfter {
		for k, b := range l.local {
			if now.Sub(b.lastSeen) > localIdleAfter {
				delete(l.local, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.local[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RequestsPerSecond), l.cfg.Burst)}
		l.local[key] = b
	}
	b.lastSeen = now

	if !b.limiter.AllowN(now, 1) {
		return decision{resetAfter: 1 / float64(l.cfg.RequestsPerSecond)}
	}
	return decision{allowed: true, remaining: b.limiter.TokensAt(now)}
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case int64:
		return float64(t)
	default:
		return 0
	}
}
