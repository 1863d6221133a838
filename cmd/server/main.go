package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pulseboard/internal/api"
	"pulseboard/internal/authbackend"
	"pulseboard/internal/config"
	"pulseboard/internal/metrics"
	"pulseboard/internal/middleware"
	"pulseboard/internal/repository"
	"pulseboard/internal/service"
	"pulseboard/internal/widgets"
	"pulseboard/pkg/logger"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	logger.InitLogger(cfg.Server.Environment)
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("application startup failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Infrastructure
	rdb, err := initRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	db, err := initDB(cfg.MySQL)
	if err != nil {
		return err
	}

	var etcdCli *clientv3.Client
	if cfg.Etcd.Enabled {
		etcdCli, err = initEtcd(cfg.Etcd)
		if err != nil {
			return err
		}
		defer etcdCli.Close()
	}

	backend, err := initBackend(cfg.Auth, db)
	if err != nil {
		return err
	}

	// 3. Repositories
	tokens := repository.NewRedisTokenStore(rdb)
	tableCache := repository.NewRedisTableCacheStore(rdb)
	rows := repository.NewGormRowStore(db)

	// 4. Services
	observer := metrics.NewPrometheusObserver()
	sessionCfg := service.SessionConfig{
		AccessTokenTTL:   cfg.Auth.AccessTokenTTL,
		RefreshTokenTTL:  cfg.Auth.RefreshTokenTTL,
		BackendTimeout:   cfg.Auth.BackendTimeout,
		RevokeSuperseded: cfg.Auth.RevokeSupersededRefresh,
		RowTimeout:       cfg.Cache.RowStoreTimeout,
	}
	verifier := service.NewSessionVerifier(tokens, backend, sessionCfg, observer)
	authSvc := service.NewAuthService(tokens, backend, rows, sessionCfg)

	tables := service.NewTableCache(tableCache, rows, widgets.DefaultProjector(), service.TableCacheConfig{
		TTL:          cfg.Cache.TableTTL,
		StoreTimeout: cfg.Cache.StoreTimeout,
		RowTimeout:   cfg.Cache.RowStoreTimeout,
	}, observer)
	invalidator := service.NewInvalidator(tableCache, cfg.Invalidation.InvalidateOnInsert, observer)

	registry, err := widgets.NewRegistry()
	if err != nil {
		return fmt.Errorf("failed to build widget registry: %w", err)
	}
	dispatcher := service.NewDispatcher(registry, tables, observer)

	// 5. Invalidation workers
	if len(cfg.Invalidation.RedisChannels) > 0 {
		redisWorker := service.NewRedisInvalidationWorker(rdb, cfg.Invalidation.RedisChannels, invalidator)
		go func() {
			logger.Info("starting redis invalidation worker",
				zap.Strings("channels", cfg.Invalidation.RedisChannels))
			redisWorker.Run(ctx)
		}()
	}

	checks := []api.HealthCheck{
		{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		{Name: "mysql", Check: rows.PingContext},
	}

	if etcdCli != nil {
		events := repository.NewEventRepository(etcdCli)
		etcdWorker := service.NewEtcdInvalidationWorker(events, cfg.Invalidation.EtcdPrefix, invalidator)
		go func() {
			logger.Info("starting etcd invalidation worker",
				zap.String("prefix", cfg.Invalidation.EtcdPrefix))
			etcdWorker.Run(ctx)
		}()
		checks = append(checks, api.HealthCheck{Name: "etcd", Check: events.Health})
	}

	// 6. HTTP
	cookies := middleware.CookieConfig{
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.CookieSecure,
	}
	r := api.RegisterRoutes(api.Handlers{
		Auth:   api.NewAuthHandler(authSvc, cookies),
		Widget: api.NewWidgetHandler(dispatcher),
		Cache:  api.NewCacheHandler(invalidator, cfg.Invalidation.WebhookSecret),
		Health: api.NewHealthHandler(checks...),
	}, api.RouterConfig{
		Verifier:          verifier,
		Cookies:           cookies,
		Redis:             rdb,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		WidgetsPerSecond:  cfg.RateLimit.WidgetsPerSecond,
		AllowedOrigins:    cfg.Cors.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: r,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment),
			zap.String("auth_provider", cfg.Auth.Provider),
			zap.Int("widgets", registry.Len()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen failed", zap.Error(err))
		}
	}()

	// 7. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// stop the invalidation workers before draining requests
	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited properly")
	return nil
}

// -- Infrastructure Initializers --

func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func initEtcd(cfg config.EtcdConfig) (*clientv3.Client, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}
	return client, nil
}

// gormWriter routes gorm's slow query and error lines into zap.
type gormWriter struct {
	s *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.s.Warnf(format, args...)
}

func initDB(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.New(gormWriter{s: logger.L().Sugar()}, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	return db, nil
}

func initBackend(cfg config.AuthConfig, db *gorm.DB) (authbackend.Backend, error) {
	switch cfg.Provider {
	case "local":
		local := authbackend.NewLocal(db, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
		if err := local.Migrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate local auth tables: %w", err)
		}
		return local, nil
	case "gotrue":
		return authbackend.NewGoTrue(cfg.GoTrue.URL, cfg.GoTrue.APIKey, cfg.BackendTimeout), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}
