// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	LIONS_HOST="0.0.0.0"
//	LIONS_PORT="8080"
//	LIONS_READ_TIMEOUT="15s"
//	LIONS_WRITE_TIMEOUT="15s"
//	LIONS_CORS_ORIGINS="*"
//	LIONS_MAX_BODY_BYTES="1048576"
//
// Database settings:
//
//	LIONS_DATABASE_URL="postgres://localhost/lions"
//	LIONS_DATABASE_MAX_CONNS="25"
//
// Authentication settings:
//
//	LIONS_AUTH_AUDIENCE="https://api.example.org"
//	LIONS_AUTH0_DOMAIN="tenant.eu.auth0.com"
//	LIONS_AUTH0_CLIENT_ID="..."
//	LIONS_AUTH0_CLIENT_SECRET="..."
//
// Rate limiting settings:
//
//	LIONS_REDIS_URL="localhost:6379"
//	LIONS_RATE_LIMIT_REQUESTS="120"
//	LIONS_RATE_LIMIT_WINDOW="1m"
//
// Observability settings:
//
//	LIONS_LOG_LEVEL="info"  # debug, info, warn, error
//	LIONS_METRICS_ENABLED="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// # Related Packages
//
//   - pkg/storage: Uses database configuration
//   - pkg/observability: Uses observability configuration
package config
