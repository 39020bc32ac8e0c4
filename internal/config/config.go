// Package config loads the service configuration from environment
// variables, with Docker-secrets style file indirection for secret values.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// EnvProduction is the environment name in which the strict key-material
// rules apply: asymmetric signing only, no symmetric fallback, unknown key
// identifiers rejected.
const EnvProduction = "production"

// Config holds all configuration for the auth service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8001"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"studio"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"studio_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"auth_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINS" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINS" envDefault:"30"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Token signing and verification material. The private key signs new
	// access tokens; verification uses either the kid map (rotation) or the
	// single public key. The symmetric secret is a non-production fallback
	// only. Each of these may be supplied inline or via <VAR>_FILE.
	JWTPrivateKeyPEM string `env:"JWT_PRIVATE_KEY"`
	JWTPublicKeyPEM  string `env:"JWT_PUBLIC_KEY"`
	JWTPublicKeysRaw string `env:"JWT_PUBLIC_KEYS"`
	JWTKeyID         string `env:"JWT_KEY_ID"`
	JWTSecret        string `env:"JWT_SECRET"`

	JWTAccessExpiry  string `env:"JWT_ACCESS_TOKEN_EXPIRY" envDefault:"12h"`
	RefreshTTLMillis int64  `env:"REFRESH_TOKEN_TTL_MS" envDefault:"2592000000"`
	ResetTokenExpiry string `env:"PASSWORD_RESET_TOKEN_EXPIRY" envDefault:"1h"`

	// Base URL of the web client; reset links are built against it.
	AppBaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:5173"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// secretVars lists the env vars that support <VAR>_FILE indirection.
var secretVars = []string{
	"JWT_PRIVATE_KEY",
	"JWT_PUBLIC_KEY",
	"JWT_PUBLIC_KEYS",
	"JWT_SECRET",
	"POSTGRES_PASSWORD",
}

// Load reads configuration from environment variables. Secret values may be
// provided as file paths via <VAR>_FILE (Docker secrets); file contents take
// effect only when the direct variable is unset or blank.
func Load() (*Config, error) {
	for _, name := range secretVars {
		if err := resolveSecretFromFile(name); err != nil {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.HTTPPort < 1 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("invalid HTTP port: %d", cfg.HTTPPort)
	}
	if cfg.RefreshTTLMillis <= 0 {
		return nil, fmt.Errorf("REFRESH_TOKEN_TTL_MS must be positive, got %d", cfg.RefreshTTLMillis)
	}
	if d, err := time.ParseDuration(cfg.JWTAccessExpiry); err != nil || d <= 0 {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TOKEN_EXPIRY %q", cfg.JWTAccessExpiry)
	}
	if d, err := time.ParseDuration(cfg.ResetTokenExpiry); err != nil || d <= 0 {
		return nil, fmt.Errorf("invalid PASSWORD_RESET_TOKEN_EXPIRY %q", cfg.ResetTokenExpiry)
	}

	// Multiline PEM values are often passed with literal \n escapes.
	cfg.JWTPrivateKeyPEM = normalizeMultiline(cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = normalizeMultiline(cfg.JWTPublicKeyPEM)

	if cfg.Environment == EnvProduction {
		if cfg.JWTPrivateKeyPEM == "" {
			return nil, fmt.Errorf("JWT_PRIVATE_KEY must be set in %q mode", cfg.Environment)
		}
		if cfg.JWTPublicKeyPEM == "" && cfg.JWTPublicKeysRaw == "" {
			return nil, fmt.Errorf("JWT_PUBLIC_KEY or JWT_PUBLIC_KEYS must be set in %q mode", cfg.Environment)
		}
	} else if cfg.JWTPrivateKeyPEM == "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("no token signing material: set JWT_PRIVATE_KEY or JWT_SECRET")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs with production key rules.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// AccessTokenTTL returns the access-token lifetime. The raw value is
// validated at load time.
func (c *Config) AccessTokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.JWTAccessExpiry)
	return d
}

// RefreshTokenTTL returns the refresh-token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTTLMillis) * time.Millisecond
}

// ResetTokenTTL returns the password-reset token lifetime.
func (c *Config) ResetTokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.ResetTokenExpiry)
	return d
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// resolveSecretFromFile copies the contents of the file named by <VAR>_FILE
// into <VAR> when the direct variable is empty.
func resolveSecretFromFile(name string) error {
	if v := os.Getenv(name); strings.TrimSpace(v) != "" {
		return nil
	}
	path := os.Getenv(name + "_FILE")
	if path == "" {
		return nil
	}
	content, err := os.ReadFile(path) // #nosec G304 -- path is operator-provided config
	if err != nil {
		return fmt.Errorf("read %s_FILE %q: %w", name, path, err)
	}
	return os.Setenv(name, strings.TrimSpace(string(content)))
}

// normalizeMultiline rewrites literal "\n" escapes into real newlines so PEM
// blocks survive single-line env injection.
func normalizeMultiline(v string) string {
	if strings.Contains(v, `\n`) {
		return strings.ReplaceAll(v, `\n`, "\n")
	}
	return v
}
