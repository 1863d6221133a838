package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	MySQL        MySQLConfig        `mapstructure:"mysql"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Etcd         EtcdConfig         `mapstructure:"etcd"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Invalidation InvalidationConfig `mapstructure:"invalidation"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
	Cors         CorsConfig         `mapstructure:"cors"`
}

type ServerConfig struct {
	Environment string `mapstructure:"environment"`
	Port        string `mapstructure:"port"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type EtcdConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type AuthConfig struct {
	// Provider selects the identity backend: "gotrue" or "local".
	Provider        string        `mapstructure:"provider"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
	BackendTimeout  time.Duration `mapstructure:"backend_timeout"`
	// RevokeSupersededRefresh deletes the old refresh entry after a successful renewal.
	RevokeSupersededRefresh bool         `mapstructure:"revoke_superseded_refresh"`
	CookieSecure            bool         `mapstructure:"cookie_secure"`
	CookieDomain            string       `mapstructure:"cookie_domain"`
	JWTSecret               string       `mapstructure:"jwt_secret"`
	GoTrue                  GoTrueConfig `mapstructure:"gotrue"`
}

type GoTrueConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

type CacheConfig struct {
	TableTTL        time.Duration `mapstructure:"table_ttl"`
	StoreTimeout    time.Duration `mapstructure:"store_timeout"`
	RowStoreTimeout time.Duration `mapstructure:"row_store_timeout"`
}

type InvalidationConfig struct {
	RedisChannels      []string `mapstructure:"redis_channels"`
	EtcdPrefix         string   `mapstructure:"etcd_prefix"`
	InvalidateOnInsert bool     `mapstructure:"invalidate_on_insert"`
	WebhookSecret      string   `mapstructure:"webhook_secret"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `mapstructure:"requests_per_second"`
	// WidgetsPerSecond limits widget batches per authenticated user.
	WidgetsPerSecond int `mapstructure:"widgets_per_second"`
}

type CorsConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.environment", "dev")
	v.SetDefault("server.port", ":8000")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("auth.provider", "gotrue")
	v.SetDefault("auth.access_token_ttl", time.Hour)
	v.SetDefault("auth.refresh_token_ttl", 30*24*time.Hour)
	v.SetDefault("auth.backend_timeout", 5*time.Second)
	v.SetDefault("auth.revoke_superseded_refresh", true)
	v.SetDefault("cache.table_ttl", 5*time.Minute)
	v.SetDefault("cache.store_timeout", 3*time.Second)
	v.SetDefault("cache.row_store_timeout", 10*time.Second)
	v.SetDefault("invalidation.redis_channels", []string{"orders_events", "contact_events"})
	v.SetDefault("invalidation.etcd_prefix", "/pulseboard/events/")
	v.SetDefault("ratelimit.requests_per_second", 5)
	v.SetDefault("ratelimit.widgets_per_second", 20)
	v.SetDefault("cors.allowed_origins", []string{"http://localhost:3000"})
}

func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// a missing file is fine, defaults and env cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}
