package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pulseboard/internal/model"
	"pulseboard/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func init() {
	logger.InitLogger("test")
	gin.SetMode(gin.TestMode)
}

func limitedRouter(rdb redis.UniversalClient, scope string, rps int) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(rdb, scope, rps))
	r.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimitMiddleware_RedisFailure_FailsOpen(t *testing.T) {
	// unreachable address forces the local fallback
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:0",
		DialTimeout: 10 * time.Millisecond,
		ReadTimeout: 10 * time.Millisecond,
		MaxRetries:  0,
	})

	r := limitedRouter(rdb, "failopen", 10)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/test", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200 (Fail Open), got %d", w.Code)
	}
	if val := w.Header().Get("X-RateLimit-Limit"); val != "10" {
		t.Errorf("Expected X-RateLimit-Limit header '10', got '%s'", val)
	}
}

func TestRateLimitMiddleware_EnforcesBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := limitedRouter(rdb, "login", 2)

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/test", nil)
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.True(t, mr.Exists("ratelimit:login:192.0.2.1"))
	assert.Positive(t, mr.TTL("ratelimit:login:192.0.2.1"))
}

func TestRateLimiter_LocalFallbackEnforces(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:0",
		DialTimeout: 10 * time.Millisecond,
		MaxRetries:  0,
	})
	r := limitedRouter(rdb, "fallback", 1)

	codes := make([]int, 0, 2)
	for range 2 {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_IdentityOrIP(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	limiter := NewRateLimiter(rdb, RateLimitConfig{Scope: "widgets", RequestsPerSecond: 1, KeyFunc: IdentityOrIP})
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if uid := c.GetHeader("X-Test-User"); uid != "" {
			c.Set(identityKey, model.Identity{ID: uid})
		}
	}, limiter.Middleware())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(user string) int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/test", nil)
		if user != "" {
			req.Header.Set("X-Test-User", user)
		}
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("u1"))
	assert.Equal(t, http.StatusTooManyRequests, call("u1"))
	// another user from the same address has its own bucket
	assert.Equal(t, http.StatusOK, call("u2"))
	assert.Equal(t, http.StatusOK, call(""))

	assert.True(t, mr.Exists("ratelimit:widgets:user:u1"))
	assert.True(t, mr.Exists("ratelimit:widgets:ip:192.0.2.1"))
}
