// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisURL is the Redis address for rate limiting (e.g. localhost:6379); empty disables rate limiting.
	RedisURL string `mapstructure:"REDIS_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "gameboard-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "gameboard-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// DeviceAccessTTL is the device access token lifetime (e.g. "24h").
	DeviceAccessTTL string `mapstructure:"DEVICE_ACCESS_TTL"`
	// DeviceRefreshTTL is the device refresh token lifetime (e.g. "720h" for 30d).
	DeviceRefreshTTL string `mapstructure:"DEVICE_REFRESH_TTL"`
	// NonceTTL is the single-use nonce lifetime (e.g. "60s").
	NonceTTL string `mapstructure:"NONCE_TTL"`
	// NonceCleanupInterval is how often the janitor sweeps expired pending nonces.
	NonceCleanupInterval string `mapstructure:"NONCE_CLEANUP_INTERVAL"`
	// NonceRetention is how long expired pending nonces are kept before deletion.
	NonceRetention string `mapstructure:"NONCE_RETENTION"`
	// RevokeOnTokenReuse when true revokes the whole session on a refresh-token
	// version mismatch instead of only rejecting the request.
	RevokeOnTokenReuse bool `mapstructure:"REVOKE_ON_TOKEN_REUSE"`
	// RateLimitPerMinute caps requests per client IP per minute on the auth endpoints; 0 disables.
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// Telemetry (optional). When Kafka brokers are set, the HTTP server emits telemetry to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events (default gameboard-telemetry).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
	// OTLPEndpoint is the OTLP gRPC endpoint for traces/metrics/logs (e.g. localhost:4317); empty disables OTel export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_ISSUER", "gameboard-auth")
	v.SetDefault("JWT_AUDIENCE", "gameboard-api")
	v.SetDefault("DEVICE_ACCESS_TTL", "24h")
	v.SetDefault("DEVICE_REFRESH_TTL", "720h") // 30d
	v.SetDefault("NONCE_TTL", "60s")
	v.SetDefault("NONCE_CLEANUP_INTERVAL", "5m")
	v.SetDefault("NONCE_RETENTION", "1h")
	v.SetDefault("REVOKE_ON_TOKEN_REUSE", false)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 60)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "gameboard-telemetry")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "gameboard-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.RateLimitPerMinute < 0 {
		return nil, errors.New("config: RATE_LIMIT_PER_MINUTE must not be negative")
	}

	return &cfg, nil
}

// AccessTTL parses DeviceAccessTTL as a time.Duration. Returns 24h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.DeviceAccessTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// RefreshTTL parses DeviceRefreshTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.DeviceRefreshTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// NonceLifetime parses NonceTTL as a time.Duration. Returns 60s if unset or invalid.
func (c *Config) NonceLifetime() time.Duration {
	d, err := time.ParseDuration(c.NonceTTL)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// NonceSweepInterval parses NonceCleanupInterval. Returns 5m if unset or invalid.
func (c *Config) NonceSweepInterval() time.Duration {
	d, err := time.ParseDuration(c.NonceCleanupInterval)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// NonceRetentionPeriod parses NonceRetention. Returns 1h if unset or invalid.
func (c *Config) NonceRetentionPeriod() time.Duration {
	d, err := time.ParseDuration(c.NonceRetention)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
