package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/notifications-api/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database_url: postgres://localhost/notifications?sslmode=disable
jwt_secret: secret
`)
	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, config.StorageDriverPostgres, cfg.StorageDriver)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 20, cfg.Pagination.DefaultLimit)
	assert.Equal(t, 200, cfg.Pagination.MaxLimit)
	assert.False(t, cfg.Features.DrawerEnabled)
	assert.True(t, cfg.Dispatch.Enabled)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORS.AllowedOrigins)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
storage_driver: memory
jwt_secret: secret
features:
  drawer_enabled: false
`)
	t.Setenv("NOTIFICATIONS_FEATURES_DRAWER_ENABLED", "true")
	t.Setenv("NOTIFICATIONS_SERVER_PORT", "9090")

	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.True(t, cfg.Features.DrawerEnabled)
	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, config.StorageDriverMemory, cfg.StorageDriver)
}

func TestLoadFromValidation(t *testing.T) {
	_, err := config.LoadFrom(writeConfig(t, "database_url: postgres://x\n"))
	assert.ErrorContains(t, err, "jwt_secret")

	_, err = config.LoadFrom(writeConfig(t, "jwt_secret: s\n"))
	assert.ErrorContains(t, err, "database_url")

	_, err = config.LoadFrom(writeConfig(t, "jwt_secret: s\nstorage_driver: redis\n"))
	assert.ErrorContains(t, err, "storage_driver")

	_, err = config.LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
