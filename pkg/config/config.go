package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/digital-lions/backend/pkg/idp"
	"github.com/digital-lions/backend/pkg/observability"
	"github.com/digital-lions/backend/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server  ServerConfig
	Storage storage.Config
	Auth    AuthConfig
	Redis   RedisConfig

	// Reconcile is the cron schedule for the identity provider
	// reconciliation job. Empty disables the job.
	Reconcile ReconcileConfig

	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	MaxBodyBytes    int64
}

// AuthConfig holds token verification and identity provider settings.
type AuthConfig struct {
	// IssuerURL and Audience validate incoming bearer tokens.
	IssuerURL string
	Audience  string

	// Auth0 Management API credentials for the user mirror.
	Auth0 idp.Auth0Config
}

// RedisConfig holds the rate limiter backend settings.
type RedisConfig struct {
	URL      string
	Password string
	DB       int

	RequestsPerWindow int
	WindowDuration    time.Duration
}

// ReconcileConfig holds the drift reconciliation job settings.
type ReconcileConfig struct {
	Schedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Auth:          loadAuthConfig(),
		Redis:         loadRedisConfig(),
		Reconcile:     ReconcileConfig{Schedule: getEnv("LIONS_RECONCILE_SCHEDULE", "@hourly")},
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("LIONS_HOST", "0.0.0.0"),
		Port:            getEnv("LIONS_PORT", "8080"),
		ReadTimeout:     getEnvDuration("LIONS_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("LIONS_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("LIONS_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("LIONS_SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:  strings.Split(getEnv("LIONS_CORS_ORIGINS", "*"), ","),
		MaxBodyBytes:    int64(getEnvInt("LIONS_MAX_BODY_BYTES", 1<<20)),
	}
}

// loadStorageConfig loads database configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()
	cfg.URL = getEnv("LIONS_DATABASE_URL", "")

	if maxConns := getEnvInt("LIONS_DATABASE_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("LIONS_DATABASE_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("LIONS_DATABASE_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	return cfg
}

// loadAuthConfig loads token and Auth0 configuration from environment
func loadAuthConfig() AuthConfig {
	domain := getEnv("LIONS_AUTH0_DOMAIN", "")
	return AuthConfig{
		IssuerURL: getEnv("LIONS_AUTH_ISSUER_URL", issuerFromDomain(domain)),
		Audience:  getEnv("LIONS_AUTH_AUDIENCE", ""),
		Auth0: idp.Auth0Config{
			Domain:       domain,
			ClientID:     getEnv("LIONS_AUTH0_CLIENT_ID", ""),
			ClientSecret: getEnv("LIONS_AUTH0_CLIENT_SECRET", ""),
			Connection:   getEnv("LIONS_AUTH0_CONNECTION", "Username-Password-Authentication"),
		},
	}
}

// loadRedisConfig loads rate limiter configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL:               getEnv("LIONS_REDIS_URL", ""),
		Password:          getEnv("LIONS_REDIS_PASSWORD", ""),
		DB:                getEnvInt("LIONS_REDIS_DB", 0),
		RequestsPerWindow: getEnvInt("LIONS_RATE_LIMIT_REQUESTS", 120),
		WindowDuration:    getEnvDuration("LIONS_RATE_LIMIT_WINDOW", time.Minute),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("LIONS_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("LIONS_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Storage.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Auth.IssuerURL == "" {
		return fmt.Errorf("auth issuer URL is required")
	}
	if c.Auth.Audience == "" {
		return fmt.Errorf("auth audience is required")
	}
	if c.Auth.Auth0.Domain == "" || c.Auth.Auth0.ClientID == "" || c.Auth.Auth0.ClientSecret == "" {
		return fmt.Errorf("Auth0 domain, client ID and client secret are required")
	}
	if c.Redis.RequestsPerWindow <= 0 {
		return fmt.Errorf("rate limit requests must be positive")
	}
	if c.Redis.WindowDuration <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	return nil
}

// issuerFromDomain derives the default token issuer from the Auth0
// tenant domain.
func issuerFromDomain(domain string) string {
	if domain == "" {
		return ""
	}
	return "https://" + domain + "/"
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
