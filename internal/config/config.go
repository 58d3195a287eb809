// AngelaMos | 2026
// config.go

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	CORS      CORSConfig      `koanf:"cors"`
	Log       LogConfig       `koanf:"log"`
	Otel      OtelConfig      `koanf:"otel"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Auth      AuthConfig      `koanf:"auth"`
	Mail      MailConfig      `koanf:"mail"`
	PageSpeed PageSpeedConfig `koanf:"pagespeed"`
	Vitals    VitalsConfig    `koanf:"vitals_cache"`
	Storage   StorageConfig   `koanf:"storage"`
	Report    ReportConfig    `koanf:"report"`
	Billing   BillingConfig   `koanf:"billing"`
}

type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

type RedisConfig struct {
	URL          string        `koanf:"url"`
	PoolSize     int           `koanf:"pool_size"`
	MinIdleConns int           `koanf:"min_idle_conns"`
	PoolTimeout  time.Duration `koanf:"pool_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`
	PingTimeout  time.Duration `koanf:"ping_timeout"`
}

type JWTConfig struct {
	PrivateKeyPath    string        `koanf:"private_key_path"`
	PublicKeyPath     string        `koanf:"public_key_path"`
	AccessTokenExpire time.Duration `koanf:"access_token_expire"`
	Issuer            string        `koanf:"issuer"`
	Audience          string        `koanf:"audience"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Burst    int           `koanf:"burst"`
	// Per-minute request budget for authenticated API traffic, keyed by tier.
	Tiers map[string]int `koanf:"tiers"`
}

type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowedMethods   []string `koanf:"allowed_methods"`
	AllowedHeaders   []string `koanf:"allowed_headers"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type OtelConfig struct {
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	Enabled     bool    `koanf:"enabled"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type AuthConfig struct {
	MagicLinkTTL time.Duration `koanf:"magic_link_ttl"`
	// Frontend URL that receives ?token= from the emailed link.
	VerifyURL string `koanf:"verify_url"`
}

type MailConfig struct {
	ResendAPIKey string        `koanf:"resend_api_key"`
	BaseURL      string        `koanf:"base_url"`
	From         string        `koanf:"from"`
	Timeout      time.Duration `koanf:"timeout"`
	// Linked from report and upgrade emails.
	DashboardURL string `koanf:"dashboard_url"`
}

type PageSpeedConfig struct {
	APIKey   string        `koanf:"api_key"`
	BaseURL  string        `koanf:"base_url"`
	Strategy string        `koanf:"strategy"`
	Timeout  time.Duration `koanf:"timeout"`
}

type VitalsConfig struct {
	Size int           `koanf:"size"`
	TTL  time.Duration `koanf:"ttl"`
	// Redis second-level cache; empty disables it.
	RedisPrefix string `koanf:"redis_prefix"`
}

type StorageConfig struct {
	Type      string `koanf:"type"`
	Root      string `koanf:"root"`
	Bucket    string `koanf:"bucket"`
	Region    string `koanf:"region"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	PathStyle bool   `koanf:"path_style"`
	Prefix    string `koanf:"prefix"`
}

type ReportConfig struct {
	ProductName       string  `koanf:"product_name"`
	WatermarkText     string  `koanf:"watermark_text"`
	DefaultOrderValue float64 `koanf:"default_order_value"`
	HistoryLimit      int     `koanf:"history_limit"`
}

type BillingConfig struct {
	WebhookSecret    string            `koanf:"webhook_secret"`
	WebhookTolerance time.Duration     `koanf:"webhook_tolerance"`
	TierPrices       map[string]string `koanf:"tier_prices"`
	DefaultTier      string            `koanf:"default_tier"`
}

var (
	cfg  *Config
	once sync.Once
)

func Load(configPath string) (*Config, error) {
	var loadErr error

	once.Do(func() {
		cfg, loadErr = load(configPath)
	})

	if loadErr != nil {
		return nil, loadErr
	}

	return cfg, nil
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKeyReplacer), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	c := &Config{}
	if err := k.Unmarshal("", c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(c); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call Load() first")
	}
	return cfg
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":        "ReportRiser",
		"app.version":     "1.0.0",
		"app.environment": "development",

		"server.host":             "0.0.0.0",
		"server.port":             8080,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",

		"database.max_open_conns":     25,
		"database.max_idle_conns":     5,
		"database.conn_max_lifetime":  "1h",
		"database.conn_max_idle_time": "30m",

		"redis.pool_size":      10,
		"redis.min_idle_conns": 5,
		"redis.pool_timeout":   "30s",
		"redis.idle_timeout":   "5m",
		"redis.ping_timeout":   "5s",

		"jwt.access_token_expire": "24h",
		"jwt.issuer":              "reportriser",
		"jwt.audience":            "reportriser-api",
		"jwt.private_key_path":    "keys/private.pem",
		"jwt.public_key_path":     "keys/public.pem",

		"rate_limit.requests":         100,
		"rate_limit.window":           "1m",
		"rate_limit.burst":            20,
		"rate_limit.tiers.free":       30,
		"rate_limit.tiers.starter":    120,
		"rate_limit.tiers.premium":    600,
		"rate_limit.tiers.enterprise": 3000,

		"cors.allowed_origins": []string{"http://localhost:3000"},
		"cors.allowed_methods": []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
		},
		"cors.allowed_headers": []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-API-Key",
			"X-Request-ID",
		},
		"cors.allow_credentials": true,
		"cors.max_age":           300,

		"log.level":  "info",
		"log.format": "json",

		"otel.enabled":      false,
		"otel.insecure":     true,
		"otel.sample_rate":  0.1,
		"otel.service_name": "reportriser-api",

		"metrics.enabled": true,
		"metrics.path":    "/metrics",

		"auth.magic_link_ttl": "1h",
		"auth.verify_url":     "http://localhost:3000/auth/verify",

		"mail.base_url":      "https://api.resend.com",
		"mail.from":          "ReportRiser <login@reportriser.com>",
		"mail.timeout":       "10s",
		"mail.dashboard_url": "http://localhost:3000/dashboard",

		"pagespeed.base_url": "https://www.googleapis.com/pagespeedonline/v5/runPagespeed",
		"pagespeed.strategy": "mobile",
		"pagespeed.timeout":  "30s",

		"vitals_cache.size":         512,
		"vitals_cache.ttl":          "6h",
		"vitals_cache.redis_prefix": "vitals:",

		"storage.type":       "filesystem",
		"storage.root":       "reports",
		"storage.region":     "us-east-1",
		"storage.path_style": false,
		"storage.prefix":     "reports/",

		"report.product_name":        "ReportRiser",
		"report.watermark_text":      "Generated by ReportRiser.com — Prove SEO ROI in 60 Seconds",
		"report.default_order_value": 100.0,
		"report.history_limit":       10,

		"billing.webhook_tolerance": "5m",
		"billing.default_tier":      "starter",
	}

	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

var envKeyMap = map[string]string{
	"DATABASE_URL":                "database.url",
	"REDIS_URL":                   "redis.url",
	"REDIS_POOL_SIZE":             "redis.pool_size",
	"ENVIRONMENT":                 "app.environment",
	"HOST":                        "server.host",
	"PORT":                        "server.port",
	"LOG_LEVEL":                   "log.level",
	"LOG_FORMAT":                  "log.format",
	"JWT_PRIVATE_KEY_PATH":        "jwt.private_key_path",
	"JWT_PUBLIC_KEY_PATH":         "jwt.public_key_path",
	"JWT_ACCESS_TOKEN_EXPIRE":     "jwt.access_token_expire",
	"JWT_ISSUER":                  "jwt.issuer",
	"JWT_AUDIENCE":                "jwt.audience",
	"RATE_LIMIT_REQUESTS":         "rate_limit.requests",
	"RATE_LIMIT_WINDOW":           "rate_limit.window",
	"RATE_LIMIT_BURST":            "rate_limit.burst",
	"OTEL_ENDPOINT":               "otel.endpoint",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "otel.endpoint",
	"OTEL_SERVICE_NAME":           "otel.service_name",
	"OTEL_ENABLED":                "otel.enabled",
	"OTEL_INSECURE":               "otel.insecure",
	"OTEL_SAMPLE_RATE":            "otel.sample_rate",
	"METRICS_ENABLED":             "metrics.enabled",
	"MAGIC_LINK_TTL":              "auth.magic_link_ttl",
	"MAGIC_LINK_VERIFY_URL":       "auth.verify_url",
	"RESEND_API_KEY":              "mail.resend_api_key",
	"MAIL_FROM":                   "mail.from",
	"MAIL_DASHBOARD_URL":          "mail.dashboard_url",
	"PAGESPEED_API_KEY":           "pagespeed.api_key",
	"PAGESPEED_STRATEGY":          "pagespeed.strategy",
	"STORAGE_TYPE":                "storage.type",
	"STORAGE_ROOT":                "storage.root",
	"S3_BUCKET":                   "storage.bucket",
	"S3_REGION":                   "storage.region",
	"S3_ENDPOINT":                 "storage.endpoint",
	"S3_ACCESS_KEY":               "storage.access_key",
	"S3_SECRET_KEY":               "storage.secret_key",
	"S3_PATH_STYLE":               "storage.path_style",
	"REPORT_DEFAULT_ORDER_VALUE":  "report.default_order_value",
	"STRIPE_WEBHOOK_SECRET":       "billing.webhook_secret",
	"STRIPE_PRICE_STARTER":        "billing.tier_prices.starter",
	"STRIPE_PRICE_PREMIUM":        "billing.tier_prices.premium",
	"STRIPE_PRICE_ENTERPRISE":     "billing.tier_prices.enterprise",
}

func envKeyReplacer(s string) string {
	if mapped, ok := envKeyMap[s]; ok {
		return mapped
	}
	return ""
}

func validate(c *Config) error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.JWT.PrivateKeyPath == "" {
		return fmt.Errorf("JWT_PRIVATE_KEY_PATH is required")
	}

	if c.JWT.PublicKeyPath == "" {
		return fmt.Errorf("JWT_PUBLIC_KEY_PATH is required")
	}

	if c.CORS.AllowCredentials {
		for _, origin := range c.CORS.AllowedOrigins {
			if origin == "*" {
				return fmt.Errorf(
					"CORS wildcard '*' cannot be used with AllowCredentials",
				)
			}
		}
	}

	if c.App.Environment == "production" {
		if c.Otel.Enabled && c.Otel.Insecure {
			return fmt.Errorf("OTEL_INSECURE must be false in production")
		}
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be positive")
	}

	switch c.Storage.Type {
	case StorageFilesystem:
		if c.Storage.Root == "" {
			return fmt.Errorf("storage.root is required for filesystem storage")
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for s3 storage")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", c.Storage.Type)
	}

	if c.Report.DefaultOrderValue < 0 {
		return fmt.Errorf("report.default_order_value must not be negative")
	}

	if c.IsProduction() && c.Billing.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required in production")
	}

	return nil
}

const (
	StorageFilesystem = "filesystem"
	StorageS3         = "s3"
)

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
