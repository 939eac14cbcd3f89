package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the application configuration
type Config struct {
	Group   GroupConfig   `json:"group"`
	Storage StorageConfig `json:"storage"`
	Server  ServerConfig  `json:"server"`
}

// GroupConfig holds group-wide aggregation settings
type GroupConfig struct {
	Name string `json:"name"`
	// Timezone used for all period boundary math, e.g. "Europe/Berlin".
	Timezone string `json:"timezone"`
	// Trailing periods averaged by the rolling comparison.
	ComparisonWindow int `json:"comparison_window"`
	// Activity types counted by running-distance views.
	RunningTypes []string `json:"running_types"`
}

// StorageConfig holds database settings
type StorageConfig struct {
	DatabasePath string `json:"database_path"`
}

// ServerConfig holds logging and metrics settings
type ServerConfig struct {
	LogLevel string `json:"log_level"`
	// MetricsAddr enables the prometheus listener when set, e.g. ":9120".
	MetricsAddr string `json:"metrics_addr"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Group: GroupConfig{
			Name:             "Fitness Group",
			Timezone:         "UTC",
			ComparisonWindow: 4,
			RunningTypes:     []string{"running", "treadmill_running", "trail_running"},
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// Load reads the configuration from ~/.fitdigest/config.json
func Load() (*Config, error) {
	path, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply defaults for missing values
	defaults := DefaultConfig()
	if cfg.Group.Name == "" {
		cfg.Group.Name = defaults.Group.Name
	}
	if cfg.Group.Timezone == "" {
		cfg.Group.Timezone = defaults.Group.Timezone
	}
	if cfg.Group.ComparisonWindow == 0 {
		cfg.Group.ComparisonWindow = defaults.Group.ComparisonWindow
	}
	if len(cfg.Group.RunningTypes) == 0 {
		cfg.Group.RunningTypes = defaults.Group.RunningTypes
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = defaults.Server.LogLevel
	}
	if cfg.Storage.DatabasePath == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return nil, err
		}
		cfg.Storage.DatabasePath = filepath.Join(dir, "fitdigest.db")
	}

	return &cfg, nil
}

// Save writes the configuration to ~/.fitdigest/config.json
func Save(cfg *Config) error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample creates an example config file if none exists
func CreateExample() error {
	path, err := getConfigPath()
	if err != nil {
		return err
	}

	// Check if config already exists
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	return Save(&example)
}

// Validate checks if the config has consistent fields
func (c *Config) Validate() error {
	if c.Group.ComparisonWindow < 0 {
		return fmt.Errorf("group.comparison_window must not be negative, got %d", c.Group.ComparisonWindow)
	}
	if c.Group.Timezone != "" {
		if _, err := time.LoadLocation(c.Group.Timezone); err != nil {
			return fmt.Errorf("group.timezone %q is not a valid IANA zone: %w", c.Group.Timezone, err)
		}
	}
	switch c.Server.LogLevel {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be one of trace, debug, info, warn, error; got %q", c.Server.LogLevel)
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Group.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Group.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".fitdigest", "config.json"), nil
}

// GetConfigDir returns the path to the config directory
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".fitdigest"), nil
}
