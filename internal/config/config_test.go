package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Group.Name != "Fitness Group" {
		t.Errorf("Group.Name = %q, want %q", cfg.Group.Name, "Fitness Group")
	}
	if cfg.Group.Timezone != "UTC" {
		t.Errorf("Group.Timezone = %q, want %q", cfg.Group.Timezone, "UTC")
	}
	if cfg.Group.ComparisonWindow != 4 {
		t.Errorf("Group.ComparisonWindow = %d, want 4", cfg.Group.ComparisonWindow)
	}
	if len(cfg.Group.RunningTypes) == 0 {
		t.Error("Group.RunningTypes should not be empty")
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("Server.LogLevel = %q, want %q", cfg.Server.LogLevel, "info")
	}

	// Metrics are opt-in.
	if cfg.Server.MetricsAddr != "" {
		t.Errorf("Server.MetricsAddr should be empty, got %q", cfg.Server.MetricsAddr)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errContains string
	}{
		{
			name:        "defaults are valid",
			config:      DefaultConfig(),
			expectError: false,
		},
		{
			name:        "empty config is valid",
			config:      Config{},
			expectError: false,
		},
		{
			name: "negative comparison window",
			config: Config{
				Group: GroupConfig{ComparisonWindow: -1},
			},
			expectError: true,
			errContains: "comparison_window",
		},
		{
			name: "bogus timezone",
			config: Config{
				Group: GroupConfig{Timezone: "Mars/Olympus_Mons"},
			},
			expectError: true,
			errContains: "timezone",
		},
		{
			name: "bogus log level",
			config: Config{
				Server: ServerConfig{LogLevel: "loud"},
			},
			expectError: true,
			errContains: "log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				if err == nil {
					t.Error("expected error, got nil")
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestConfigLocation(t *testing.T) {
	cfg := Config{Group: GroupConfig{Timezone: "Europe/Berlin"}}
	loc := cfg.Location()
	if loc.String() != "Europe/Berlin" {
		t.Errorf("Location() = %q, want Europe/Berlin", loc)
	}

	empty := Config{}
	if empty.Location() != time.UTC {
		t.Error("empty timezone should resolve to UTC")
	}

	broken := Config{Group: GroupConfig{Timezone: "Nowhere/At_All"}}
	if broken.Location() != time.UTC {
		t.Error("unresolvable timezone should fall back to UTC")
	}
}
