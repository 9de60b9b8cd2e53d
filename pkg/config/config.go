package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv        string
	LogLevel      string
	EncryptionKey string

	// Database. An empty DatabaseURL selects the local SQLite store.
	DatabaseURL      string
	SQLitePath       string
	DatabaseMaxConns int

	// Redis. Empty disables the plan cache.
	RedisURL              string
	PlanCacheTTL          time.Duration
	CacheBreakerThreshold int

	// RabbitMQ. Empty keeps event delivery in process.
	RabbitMQURL string

	// Subscriptions
	SubscriptionBaseLifetime time.Duration
	ReconcileInterval        time.Duration

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxStatsInterval    time.Duration
	OutboxRetentionDays    int
	OutboxCleanupInterval  time.Duration
	OutboxProcessorEnabled bool

	// Transports
	APIAddr          string
	WorkerHealthAddr string
	MCPAddr          string
	MCPAuthToken     string

	// MCPUserID and MCPUserRole name the principal MCP tools act as.
	MCPUserID   string
	MCPUserRole string
}

// Load loads configuration from environment variables, reading a .env file
// first when one exists.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with a YAML file of fallback values keyed by the
// environment variable names. Set variables win over the file.
func LoadFile(path string) (*Config, error) {
	_ = godotenv.Load()

	src := source{}
	if path != "" {
		file, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		src.file = file
	}

	cfg := &Config{
		AppEnv:        src.getEnv("APP_ENV", "development"),
		LogLevel:      src.getEnv("LOG_LEVEL", "info"),
		EncryptionKey: src.getEnv("SCREENPASS_ENCRYPTION_KEY", ""),

		DatabaseURL:      src.getEnv("DATABASE_URL", ""),
		SQLitePath:       src.getEnv("SQLITE_PATH", ""),
		DatabaseMaxConns: src.getIntEnv("DATABASE_MAX_CONNS", 10),

		RedisURL:              src.getEnv("REDIS_URL", ""),
		PlanCacheTTL:          src.getDurationEnv("PLAN_CACHE_TTL", 5*time.Minute),
		CacheBreakerThreshold: src.getIntEnv("CACHE_BREAKER_THRESHOLD", 5),

		RabbitMQURL: src.getEnv("RABBITMQ_URL", ""),

		SubscriptionBaseLifetime: src.getDurationEnv("SUBSCRIPTION_BASE_LIFETIME", time.Minute),
		ReconcileInterval:        src.getDurationEnv("RECONCILE_INTERVAL", time.Second),

		OutboxPollInterval:     src.getDurationEnv("OUTBOX_POLL_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:        src.getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       src.getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxStatsInterval:    src.getDurationEnv("OUTBOX_STATS_INTERVAL", 30*time.Second),
		OutboxRetentionDays:    src.getIntEnv("OUTBOX_RETENTION_DAYS", 14),
		OutboxCleanupInterval:  src.getDurationEnv("OUTBOX_CLEANUP_INTERVAL", 24*time.Hour),
		OutboxProcessorEnabled: src.getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		APIAddr:          src.getEnv("API_ADDR", "0.0.0.0:8080"),
		WorkerHealthAddr: src.getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),
		MCPAddr:          src.getEnv("MCP_ADDR", "0.0.0.0:8082"),
		MCPAuthToken:     src.getEnv("MCP_AUTH_TOKEN", ""),
		MCPUserID:        src.getEnv("MCP_USER_ID", ""),
		MCPUserRole:      src.getEnv("MCP_USER_ROLE", "USER"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the scheduler and lifecycle cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.SubscriptionBaseLifetime <= 0 {
		errs = append(errs, fmt.Errorf("SUBSCRIPTION_BASE_LIFETIME must be positive, got %s", c.SubscriptionBaseLifetime))
	}
	if c.ReconcileInterval <= 0 {
		errs = append(errs, fmt.Errorf("RECONCILE_INTERVAL must be positive, got %s", c.ReconcileInterval))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("OUTBOX_BATCH_SIZE must be positive, got %d", c.OutboxBatchSize))
	}
	if c.IsProduction() && c.MCPAuthToken == "" {
		errs = append(errs, errors.New("MCP_AUTH_TOKEN is required in production"))
	}
	return errors.Join(errs...)
}

// UsesSQLite reports whether the local SQLite store is selected.
func (c *Config) UsesSQLite() bool {
	return c.DatabaseURL == ""
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// source resolves a setting from the environment, then the config file.
type source struct {
	file map[string]string
}

func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	values := make(map[string]string, len(raw))
	for key, value := range raw {
		if value != nil {
			values[key] = fmt.Sprint(value)
		}
	}
	return values, nil
}

func (s source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s source) getEnv(key, defaultValue string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultValue
}

func (s source) getIntEnv(key string, defaultValue int) int {
	if value := s.lookup(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func (s source) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := s.lookup(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func (s source) getBoolEnv(key string, defaultValue bool) bool {
	if value := s.lookup(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
