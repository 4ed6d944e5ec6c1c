// Package config loads Deckhand's server configuration the way the teacher
// does: environment-variable driven, no config file, no flag-heavy startup.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	HTTPAddr string
	LogLevel string

	DatabaseURL string // Postgres DSN, used if set.
	SQLiteDSN   string // fallback/dev store.

	RedisAddr string // optional cache of each revision's stored documents; empty disables it.

	SecretStoreBackend string // "s3" | "memory"
	SecretStoreBucket  string
	AWSRegion          string

	OTLPEndpoint string

	AuthRequired bool
	AuthJWTKey   string // HMAC key validating the X-Auth-Token bearer JWT.

	RenderTimeout                time.Duration
	SubstitutionFailOnMissingSrc bool
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "INFO"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLiteDSN:   getEnv("SQLITE_DSN", "file:deckhand.db?cache=shared"),

		RedisAddr: getEnv("REDIS_ADDR", ""),

		SecretStoreBackend: getEnv("SECRET_STORE_BACKEND", "memory"),
		SecretStoreBucket:  getEnv("SECRET_STORE_BUCKET", "deckhand-secrets"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", "localhost:4317"),

		AuthRequired: getEnvBool("AUTH_REQUIRED", false),
		AuthJWTKey:   getEnv("AUTH_JWT_KEY", ""),

		RenderTimeout:                getEnvDuration("RENDER_TIMEOUT", 60*time.Second),
		SubstitutionFailOnMissingSrc: getEnvBool("SUBSTITUTION_FAIL_ON_MISSING_SRC", true),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// UseSQLite reports whether the configured store is the embedded SQLite
// backend (no DatabaseURL configured).
func (c *Config) UseSQLite() bool {
	return c.DatabaseURL == ""
}
