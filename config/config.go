package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Pipeline PipelineConfig
	Ingest   IngestConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
	CacheMaxAge             time.Duration
	CORSAllowedOrigins      []string
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
	LockTTL  time.Duration
}

type PipelineConfig struct {
	Interval       time.Duration
	FetchTimeout   time.Duration
	PerFeedCap     int
	PerCategoryCap int
	WorkerCount    int
	RateLimit      float64
	BatchSize      int
	Retention      time.Duration
	// Categories written with full replacement instead of incremental upsert.
	ReplaceCategories []string
}

type IngestConfig struct {
	// Token protects the manual ingestion trigger endpoint. Empty disables
	// the check.
	Token string
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
			CacheMaxAge:             getEnvDuration("SERVER_CACHE_MAX_AGE", 5*time.Minute),
			CORSAllowedOrigins:      getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			CacheTTL: getEnvDuration("REDIS_CACHE_TTL", 5*time.Minute),
			LockTTL:  getEnvDuration("REDIS_LOCK_TTL", 5*time.Minute),
		},
		Pipeline: PipelineConfig{
			Interval:          getEnvDuration("PIPELINE_INTERVAL", 10*time.Minute),
			FetchTimeout:      getEnvDuration("PIPELINE_FETCH_TIMEOUT", 10*time.Second),
			PerFeedCap:        getEnvInt("PIPELINE_PER_FEED_CAP", 6),
			PerCategoryCap:    getEnvInt("PIPELINE_PER_CATEGORY_CAP", 6),
			WorkerCount:       getEnvInt("PIPELINE_WORKER_COUNT", 4),
			RateLimit:         getEnvFloat("PIPELINE_RATE_LIMIT", 5.0),
			BatchSize:         getEnvInt("PIPELINE_BATCH_SIZE", 100),
			Retention:         getEnvDuration("PIPELINE_RETENTION", 24*time.Hour),
			ReplaceCategories: getEnvList("PIPELINE_REPLACE_CATEGORIES", nil),
		},
		Ingest: IngestConfig{
			Token: getEnv("INGEST_TOKEN", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Pipeline.WorkerCount < 1 {
		return fmt.Errorf("pipeline worker count must be at least 1")
	}
	if c.Pipeline.Interval < time.Minute {
		return fmt.Errorf("pipeline interval must be at least 1m, got %s", c.Pipeline.Interval)
	}
	if c.Pipeline.PerFeedCap < 1 || c.Pipeline.PerCategoryCap < 1 {
		return fmt.Errorf("per-feed and per-category caps must be at least 1")
	}
	if c.Pipeline.RateLimit <= 0 {
		return fmt.Errorf("pipeline rate limit must be positive, got %v", c.Pipeline.RateLimit)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
