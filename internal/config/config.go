package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
	Tracing     TracingConfig
	AdminSync   AdminSyncConfig
	Reconcile   ReconcileConfig
	Webhook     WebhookConfig
	Redis       RedisConfig
	Email       EmailConfig
	Events      EventsConfig
	Environment string
}

type ServerConfig struct {
	Host    string
	Port    int
	BaseURL string
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int
	MigrationsPath string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool
	Exporter     string
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

// AdminSyncConfig describes the admin portal peer that receives pushed events.
type AdminSyncConfig struct {
	PortalURL     string
	Enabled       bool
	PushTimeout   time.Duration
	HealthTimeout time.Duration
	Source        string
	RateLimit     float64
}

// ReconcileConfig controls the bulk reconciliation pass.
type ReconcileConfig struct {
	Schedule    string
	BatchSize   int
	Concurrency int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	LockTTL     time.Duration
}

type WebhookConfig struct {
	Secret string
	Issuer string
	Expiry time.Duration
}

type RedisConfig struct {
	URL    string
	Prefix string
}

type EmailConfig struct {
	Enabled      bool
	From         string
	ResendAPIKey string
}

type EventsConfig struct {
	AutoApprove   bool
	DefaultCampus string
}

func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:    getEnvInt("SERVER_PORT", 3001),
			BaseURL: getEnv("SERVER_BASE_URL", "http://localhost:3001"),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: getEnvInt("DATABASE_MAX_CONNECTIONS", 10),
			MigrationsPath: getEnv("DATABASE_MIGRATIONS_PATH", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Tracing: TracingConfig{
			Enabled:      getEnvBool("TRACING_ENABLED", false),
			Exporter:     getEnv("TRACING_EXPORTER", "stdout"),
			ServiceName:  getEnv("TRACING_SERVICE_NAME", "teacher-portal"),
			OTLPEndpoint: getEnv("TRACING_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate:   getEnvFloat("TRACING_SAMPLE_RATE", 1.0),
		},
		AdminSync: AdminSyncConfig{
			PortalURL:     strings.TrimRight(getEnv("ADMIN_PORTAL_URL", "http://localhost:3002"), "/"),
			Enabled:       os.Getenv("ADMIN_SYNC_ENABLED") != "false",
			PushTimeout:   getEnvDuration("ADMIN_SYNC_PUSH_TIMEOUT", 10*time.Second),
			HealthTimeout: getEnvDuration("ADMIN_SYNC_HEALTH_TIMEOUT", 5*time.Second),
			Source:        getEnv("ADMIN_SYNC_SOURCE", "teacher-portal"),
			RateLimit:     getEnvFloat("ADMIN_SYNC_RATE_LIMIT", 5),
		},
		Reconcile: ReconcileConfig{
			Schedule:    getEnv("RECONCILE_SCHEDULE", "*/5 * * * *"),
			BatchSize:   getEnvInt("RECONCILE_BATCH_SIZE", 100),
			Concurrency: getEnvInt("RECONCILE_CONCURRENCY", 4),
			BackoffBase: getEnvDuration("RECONCILE_BACKOFF_BASE", 30*time.Second),
			BackoffMax:  getEnvDuration("RECONCILE_BACKOFF_MAX", time.Hour),
			LockTTL:     getEnvDuration("RECONCILE_LOCK_TTL", 5*time.Minute),
		},
		Webhook: WebhookConfig{
			Secret: getEnv("WEBHOOK_SECRET", ""),
			Issuer: getEnv("WEBHOOK_ISSUER", "admin-portal"),
			Expiry: getEnvDuration("WEBHOOK_TOKEN_EXPIRY", 24*time.Hour),
		},
		Redis: RedisConfig{
			URL:    getEnv("REDIS_URL", ""),
			Prefix: getEnv("REDIS_PREFIX", "teacher-portal:"),
		},
		Email: EmailConfig{
			Enabled:      getEnvBool("EMAIL_ENABLED", false),
			From:         getEnv("EMAIL_FROM", "events@bitspilani.ac.ae"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		Events: EventsConfig{
			AutoApprove:   getEnvBool("EVENTS_AUTO_APPROVE", false),
			DefaultCampus: getEnv("EVENTS_DEFAULT_CAMPUS", "dubai"),
		},
		Environment: getEnv("ENVIRONMENT", "development"),
	}

	if cfg.Database.URL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Environment == "production" && len(cfg.Webhook.Secret) < 32 {
		return Config{}, fmt.Errorf("WEBHOOK_SECRET must be at least 32 characters in production")
	}
	if cfg.Reconcile.BatchSize <= 0 {
		return Config{}, fmt.Errorf("RECONCILE_BATCH_SIZE must be positive")
	}
	if cfg.Reconcile.Concurrency <= 0 {
		cfg.Reconcile.Concurrency = 1
	}
	if cfg.Email.Enabled && cfg.Email.ResendAPIKey == "" {
		return Config{}, fmt.Errorf("RESEND_API_KEY is required when EMAIL_ENABLED=true")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("10s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
