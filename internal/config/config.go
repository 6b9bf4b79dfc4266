package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir    string `toml:"log_dir"`
	HistoryDB string `toml:"history_db"`
	APIBind   string `toml:"api_bind"`
	APIToken  string `toml:"api_token"`
}

// Transfers contains tuning for the transfer engine.
type Transfers struct {
	// Concurrency bounds the number of simultaneously active transfers.
	Concurrency int `toml:"concurrency"`
	// SweepInterval, in minutes, enables the in-process retention sweep
	// when greater than zero. Sweep can also be driven externally via the
	// API regardless of this setting.
	SweepInterval int `toml:"sweep_interval"`
	// SweepMaxAge, in hours, is how long terminal records stay visible.
	SweepMaxAge int `toml:"sweep_max_age"`
	// EventBuffer is the capacity of the in-memory event ring.
	EventBuffer int `toml:"event_buffer"`
}

// SSH contains settings shared by every remote session.
type SSH struct {
	// ConnectTimeout, in seconds, bounds session establishment.
	ConnectTimeout int `toml:"connect_timeout"`
	// RsyncBinary overrides the remote rsync binary name.
	RsyncBinary string `toml:"rsync_binary"`
}

// ConnectTimeoutDuration returns the connect timeout as a duration.
func (s SSH) ConnectTimeoutDuration() time.Duration {
	return time.Duration(s.ConnectTimeout) * time.Second
}

// Host describes one remote media-server endpoint and its directory layout.
type Host struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	Address string `toml:"address"`
	Port    int    `toml:"port"`
	User    string `toml:"user"`
	// KeyFile is the path to an SSH private key used for authentication.
	KeyFile string `toml:"key_file"`
	// PasswordEnv names an environment variable holding a password; used
	// when KeyFile is empty so secrets stay out of the config file.
	PasswordEnv string `toml:"password_env"`
	// Categories maps content category names to absolute base directories
	// on this host.
	Categories map[string]string `toml:"categories"`
	// Fallback names the category used when a source path matches nothing.
	Fallback string `toml:"fallback"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for shuttle.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Transfers Transfers `toml:"transfers"`
	SSH       SSH       `toml:"ssh"`
	Hosts     []Host    `toml:"hosts"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/shuttle/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Parse decodes a configuration document from memory, applying the same
// defaults, normalization, and validation as Load. Used by tests and by
// `shuttle config check`.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// WriteSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

// HostByID returns the configured host with the given id.
func (c *Config) HostByID(id string) (*Host, bool) {
	for i := range c.Hosts {
		if c.Hosts[i].ID == id {
			return &c.Hosts[i], true
		}
	}
	return nil, false
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", errors.New("path must not be empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}
