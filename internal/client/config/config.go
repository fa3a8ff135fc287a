// Package config persists the CLI settings: the server URL and the session
// token of the last login.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/cloudkeeper/internal/timex"
)

const (
	dirName    = "cloudkeeper"
	fileName   = "config.json"
	dirPerms   = 0o700
	filePerms  = 0o600
	DefaultURL = "http://localhost:8080"

	defaultRequestTimeout = 5 * time.Minute
)

// Config holds persisted CLI configuration.
type Config struct {
	ServerURL      string         `json:"server_url"`
	Token          string         `json:"token,omitempty"`
	TokenExpiresAt time.Time      `json:"token_expires_at,omitempty"`
	RequestTimeout timex.Duration `json:"request_timeout"`
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = DefaultURL
	c.RequestTimeout = timex.Duration{Duration: defaultRequestTimeout}
}

// userConfigDir is a seam for tests.
var userConfigDir = os.UserConfigDir

// DefaultPath returns <user config dir>/cloudkeeper/config.json.
func DefaultPath() (string, error) {
	dir, err := userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, dirName, fileName), nil
}

// Load reads the config at path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultURL
	}
	if cfg.RequestTimeout.Duration <= 0 {
		cfg.RequestTimeout = timex.Duration{Duration: defaultRequestTimeout}
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed. The file is
// readable by the owner only since it holds the session token.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, filePerms)
}

// HasToken reports whether a token is stored and not yet expired.
func (c *Config) HasToken() bool {
	if c.Token == "" {
		return false
	}
	return c.TokenExpiresAt.IsZero() || time.Now().Before(c.TokenExpiresAt)
}

// ClearToken forgets the stored session.
func (c *Config) ClearToken() {
	c.Token = ""
	c.TokenExpiresAt = time.Time{}
}
