package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Database", cfg.Store.Name)
	assert.Equal(t, "group.sharedstore.database", cfg.Store.ResolvedGroupID())
	assert.Equal(t, time.Second, cfg.Diagnostics.GracePeriod)
	assert.Equal(t, slog.LevelInfo, cfg.Logging.SlogLevel())
}

func TestLoad(t *testing.T) {
	t.Setenv("SHAREDSTORE_ROOT", "/var/containers")
	path := writeFile(t, "sharedstore.yaml", `
store:
  name: Bookmarks
  group_prefix: group.com.example
  container_root: ${SHAREDSTORE_ROOT}
  schema_dir: ./schema
diagnostics:
  endpoint: https://pixels.example.com/e
  grace_period: 250ms
  rate_per_second: 2
  burst: 3
lifecycle:
  protected_dir: /var/protected
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "Bookmarks", cfg.Store.Name)
	assert.Equal(t, "group.com.example.database", cfg.Store.ResolvedGroupID())
	assert.Equal(t, "/var/containers", cfg.Store.ContainerRoot)
	assert.Equal(t, "./schema", cfg.Store.SchemaDir)
	assert.Equal(t, "https://pixels.example.com/e", cfg.Diagnostics.Endpoint)
	assert.Equal(t, 250*time.Millisecond, cfg.Diagnostics.GracePeriod)
	assert.Equal(t, 2.0, cfg.Diagnostics.RatePerSecond)
	assert.Equal(t, 3, cfg.Diagnostics.Burst)
	assert.Equal(t, "/var/protected", cfg.Lifecycle.ProtectedDir)
	assert.Equal(t, slog.LevelDebug, cfg.Logging.SlogLevel())
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestParse_KeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("store:\n  group_id: group.explicit\n"))
	require.NoError(t, err)

	assert.Equal(t, "Database", cfg.Store.Name)
	assert.Equal(t, "group.explicit", cfg.Store.ResolvedGroupID())
	assert.Equal(t, time.Second, cfg.Diagnostics.GracePeriod)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		errMsg string
	}{
		{"bad yaml", "store: [", "parsing config file"},
		{"bad duration", "diagnostics:\n  grace_period: soon\n", "grace_period"},
		{"negative grace", "diagnostics:\n  grace_period: -1s\n", "must not be negative"},
		{"empty name", "store:\n  name: \"\"\n", "store.name is required"},
		{"no group", "store:\n  group_prefix: \"\"\n", "group_prefix or store.group_id"},
		{"bad level", "logging:\n  level: loud\n", "logging.level"},
		{"bad format", "logging:\n  format: xml\n", "logging.format"},
		{"zero rate", "diagnostics:\n  rate_per_second: -1\n", "rate_per_second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestExpandEnvVars_Unset(t *testing.T) {
	assert.Equal(t, "root: ", expandEnvVars("root: ${SHAREDSTORE_DEFINITELY_UNSET}"))
}

func TestLoadEnvFile(t *testing.T) {
	path := writeFile(t, ".env", "SHAREDSTORE_TEST_ENDPOINT=https://from-dotenv.example\n")
	t.Setenv("SHAREDSTORE_TEST_ENDPOINT", "")
	require.NoError(t, os.Unsetenv("SHAREDSTORE_TEST_ENDPOINT"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "https://from-dotenv.example", os.Getenv("SHAREDSTORE_TEST_ENDPOINT"))

	cfg, err := Parse([]byte("diagnostics:\n  endpoint: ${SHAREDSTORE_TEST_ENDPOINT}\n"))
	require.NoError(t, err)
	assert.Equal(t, "https://from-dotenv.example", cfg.Diagnostics.Endpoint)

	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))
}
