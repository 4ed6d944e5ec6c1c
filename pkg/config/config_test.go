package config_test

import (
	"testing"
	"time"

	"github.com/deckhand/deckhand/pkg/config"
	"github.com/stretchr/testify/assert"
)

// TestLoad_Defaults verifies that Load() returns sensible defaults
// when no environment variables are set.
func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_DSN", "")
	t.Setenv("SECRET_STORE_BACKEND", "")
	t.Setenv("AUTH_REQUIRED", "")
	t.Setenv("RENDER_TIMEOUT", "")
	t.Setenv("SUBSTITUTION_FAIL_ON_MISSING_SRC", "")

	cfg := config.Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.True(t, cfg.UseSQLite())
	assert.Equal(t, "memory", cfg.SecretStoreBackend)
	assert.False(t, cfg.AuthRequired)
	assert.Equal(t, 60*time.Second, cfg.RenderTimeout)
	assert.True(t, cfg.SubstitutionFailOnMissingSrc)
}

// TestLoad_Overrides verifies that environment variables correctly
// override default values.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("DATABASE_URL", "postgres://production:5432/db")
	t.Setenv("SECRET_STORE_BACKEND", "s3")
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("AUTH_JWT_KEY", "s3cr3t")
	t.Setenv("RENDER_TIMEOUT", "30s")
	t.Setenv("SUBSTITUTION_FAIL_ON_MISSING_SRC", "false")

	cfg := config.Load()

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "postgres://production:5432/db", cfg.DatabaseURL)
	assert.False(t, cfg.UseSQLite())
	assert.Equal(t, "s3", cfg.SecretStoreBackend)
	assert.True(t, cfg.AuthRequired)
	assert.Equal(t, "s3cr3t", cfg.AuthJWTKey)
	assert.Equal(t, 30*time.Second, cfg.RenderTimeout)
	assert.False(t, cfg.SubstitutionFailOnMissingSrc)
}
