// Package config provides configuration types and defaults for semver-server.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spookyvision/semver-server/internal/log"
	"github.com/spookyvision/semver-server/internal/tracing"
)

// DefaultAddr is the address the server listens on when none is configured.
const DefaultAddr = "127.0.0.1:7878"

// Config holds all configuration options for semver-server.
type Config struct {
	// Store is the path of the JSON registry snapshot.
	// Default: ~/.config/semver-server/registry.json
	Store string `mapstructure:"store"`

	// Addr is the TCP listen address for serve, and the dial address
	// for the client commands.
	Addr string `mapstructure:"addr"`

	// Debug enables debug-level log output.
	Debug bool `mapstructure:"debug"`

	// LogPath is the log file path. Empty disables file logging.
	LogPath string `mapstructure:"log_path"`

	// WatchStore makes the server watch the snapshot file and warn when
	// it changes underneath a running server.
	WatchStore bool `mapstructure:"watch_store"`

	Search  SearchConfig   `mapstructure:"search"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

// SearchConfig holds substring search cache settings.
type SearchConfig struct {
	// CacheTTLSeconds bounds how long a search result may be served from
	// cache. Mutations invalidate the cache regardless.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`

	// DisableCache routes every search through the registry.
	DisableCache bool `mapstructure:"disable_cache"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Store:      DefaultStorePath(),
		Addr:       DefaultAddr,
		Debug:      false,
		LogPath:    "",
		WatchStore: true,
		Search: SearchConfig{
			CacheTTLSeconds: 30,
			DisableCache:    false,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// DefaultStorePath returns the default registry snapshot location.
// Returns ~/.config/semver-server/registry.json or a relative fallback
// if the home directory is unavailable.
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "registry.json"
	}
	return filepath.Join(home, ".config", "semver-server", "registry.json")
}

// DefaultTracesFilePath returns the default path for trace file export.
func DefaultTracesFilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "semver-server", "traces", "traces.jsonl")
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# semver-server Configuration

# Path to the registry snapshot file
# store: ~/.config/semver-server/registry.json

# TCP address the server listens on, and the client commands dial
addr: 127.0.0.1:7878

# Enable debug-level logging
debug: false

# Log file path (empty disables file logging)
# log_path: ~/.config/semver-server/semver-server.log

# Warn when the snapshot file changes underneath a running server
watch_store: true

# Substring search cache
search:
  cache_ttl_seconds: 30   # How long a search result may be served from cache
  disable_cache: false    # Route every search through the registry

# Distributed tracing configuration
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.config/semver-server/traces/traces.jsonl
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
