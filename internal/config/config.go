// Package config loads docvault settings from the environment and resolves
// the per-user data directory that holds the database file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/caarlos0/env/v11"
)

// DefaultAppName names the data directory and the database file.
const DefaultAppName = "docvault"

// Config holds application configuration loaded from the environment.
type Config struct {
	// AppName names the data directory and the database file.
	AppName string `env:"DOCVAULT_APP_NAME" envDefault:"docvault"`
	// DataDir overrides the platform local data directory when set.
	DataDir string `env:"DOCVAULT_DATA_DIR"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"DOCVAULT_LOG_LEVEL" envDefault:"info"`
	// AdminAddr is the loopback address for the JSON admin surface.
	AdminAddr string `env:"DOCVAULT_ADMIN_ADDR" envDefault:"127.0.0.1:8383"`
}

// Load parses Config from the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses Config from the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.AppName = strings.TrimSpace(cfg.AppName)
	if cfg.AppName == "" {
		return Config{}, errors.New("config: DOCVAULT_APP_NAME must not be empty")
	}
	if strings.ContainsAny(cfg.AppName, `/\`) {
		return Config{}, fmt.Errorf("config: DOCVAULT_APP_NAME %q must not contain path separators", cfg.AppName)
	}
	return cfg, nil
}

// AppDataDir returns the directory holding the application's database.
// It is DataDir when set, otherwise <platform local data dir>/<AppName>.
func (c Config) AppDataDir() (string, error) {
	if c.DataDir != "" {
		return filepath.Clean(c.DataDir), nil
	}
	base, err := LocalDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, c.AppName), nil
}

// LocalDataDir returns the platform's per-user, machine-local data directory.
//
//	windows: %LOCALAPPDATA%
//	darwin:  ~/Library/Application Support
//	others:  $XDG_DATA_HOME, or ~/.local/share
func LocalDataDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		dir := os.Getenv("LOCALAPPDATA")
		if dir == "" {
			return "", errors.New("%LOCALAPPDATA% is not defined")
		}
		return dir, nil
	case "darwin", "ios":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			if !filepath.IsAbs(dir) {
				return "", errors.New("path in $XDG_DATA_HOME is relative")
			}
			return dir, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share"), nil
	}
}
