package api

import (
	"pulseboard/internal/metrics"
	"pulseboard/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type Handlers struct {
	Auth   *AuthHandler
	Widget *WidgetHandler
	Cache  *CacheHandler
	Health *HealthHandler
}

type RouterConfig struct {
	Verifier          middleware.Verifier
	Cookies           middleware.CookieConfig
	Redis             redis.UniversalClient
	RequestsPerSecond int
	WidgetsPerSecond  int
	AllowedOrigins    []string
}

func RegisterRoutes(h Handlers, cfg RouterConfig) *gin.Engine {
	r := gin.New()

	r.Use(
		middleware.CorsMiddleware(cfg.AllowedOrigins),
		middleware.RequestID(),
		middleware.TraceMiddleware(),
		middleware.GinZapLogger(),
		middleware.GinZapRecovery(),
		middleware.HttpMiddleware(),
	)
	r.SetTrustedProxies(nil)

	// Public Routes
	r.GET("/health", h.Health.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	session := middleware.SessionMiddleware(cfg.Verifier, cfg.Cookies)
	widgetLimit := middleware.NewRateLimiter(cfg.Redis, middleware.RateLimitConfig{
		Scope:             "widgets",
		RequestsPerSecond: cfg.WidgetsPerSecond,
		KeyFunc:           middleware.IdentityOrIP,
	})

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.RateLimitMiddleware(cfg.Redis, "login", cfg.RequestsPerSecond), h.Auth.Login)
		auth.POST("/logout", h.Auth.Logout)
	}

	protected := r.Group("/v1")
	protected.Use(session)
	{
		protected.GET("/config/me", h.Auth.Me)
		protected.POST("/:module/widgets", widgetLimit.Middleware(), h.Widget.Widgets)
	}

	cache := r.Group("/v1/cache")
	cache.Use(h.Cache.RequireSecret())
	{
		cache.POST("/invalidate", h.Cache.Invalidate)
		cache.POST("/events", h.Cache.Events)
	}
	return r
}
