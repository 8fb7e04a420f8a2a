package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/zdunecki/internnav/pkg/api"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{EnvSessionFile: "/tmp/s.yaml"}))
	require.NoError(t, err)
	assert.Equal(t, api.DefaultBaseURL, cfg.APIURL)
	assert.Equal(t, "/tmp/s.yaml", cfg.SessionFile)
	assert.Equal(t, zapcore.WarnLevel, cfg.LogLevel)
	assert.Empty(t, cfg.LogFile)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		EnvAPIURL:      "https://api.example.com",
		EnvSessionFile: "/tmp/s.yaml",
		EnvLogLevel:    "debug",
		EnvLogFile:     "/tmp/internnav.log",
		EnvCatalogDir:  "/etc/internnav/catalogs",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.APIURL)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, "/tmp/internnav.log", cfg.LogFile)
	assert.Equal(t, "/etc/internnav/catalogs", cfg.CatalogDir)
}

func TestFromEnvBadLevel(t *testing.T) {
	_, err := FromEnv(envMap(map[string]string{EnvSessionFile: "/tmp/s.yaml", EnvLogLevel: "loud"}))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvCatalogDir+"=/from/dotenv\n"+EnvSessionFile+"=/tmp/s.yaml\n"), 0o600))
	t.Setenv(EnvCatalogDir, "")
	require.NoError(t, os.Unsetenv(EnvCatalogDir))
	t.Setenv(EnvSessionFile, "/tmp/already-set.yaml")

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "/from/dotenv", cfg.CatalogDir)
	assert.Equal(t, "/tmp/already-set.yaml", cfg.SessionFile)
}
