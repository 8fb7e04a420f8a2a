// Package config resolves settings from an optional .env file and the
// environment. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap/zapcore"

	"github.com/zdunecki/internnav/pkg/api"
)

const (
	EnvAPIURL      = "INTERNNAV_API_URL"
	EnvSessionFile = "INTERNNAV_SESSION_FILE"
	EnvLogLevel    = "INTERNNAV_LOG_LEVEL"
	EnvLogFile     = "INTERNNAV_LOG_FILE"
	EnvCatalogDir  = "INTERNNAV_CATALOG_DIR"
)

type Config struct {
	APIURL      string
	SessionFile string
	LogLevel    zapcore.Level
	// LogFile is empty for stderr.
	LogFile string
	// CatalogDir holds extra wizard catalogs, if set.
	CatalogDir string
}

// Load reads envFiles (missing files are skipped) without overriding
// variables already set, then builds a Config from the environment.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function, usually os.Getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		APIURL:     strings.TrimSpace(getenv(EnvAPIURL)),
		LogFile:    strings.TrimSpace(getenv(EnvLogFile)),
		CatalogDir: strings.TrimSpace(getenv(EnvCatalogDir)),
		LogLevel:   zapcore.WarnLevel,
	}
	if cfg.APIURL == "" {
		cfg.APIURL = api.DefaultBaseURL
	}

	if lvl := strings.TrimSpace(getenv(EnvLogLevel)); lvl != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(lvl)); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}

	cfg.SessionFile = strings.TrimSpace(getenv(EnvSessionFile))
	if cfg.SessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate config dir (set %s): %w", EnvSessionFile, err)
		}
		cfg.SessionFile = filepath.Join(dir, "internnav", "session.yaml")
	}
	return cfg, nil
}
