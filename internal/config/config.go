// Package config handles configuration loading and management for buildcheck.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for buildcheck.
type Config struct {
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Ports        PortsConfig        `mapstructure:"ports"`
	Visual       VisualConfig       `mapstructure:"visual"`
	Timeouts     TimeoutsConfig     `mapstructure:"timeouts"`
	Watch        WatchConfig        `mapstructure:"watch"`
}

// OrchestratorConfig holds loop-control settings.
type OrchestratorConfig struct {
	// MaxIterations caps the scan/fix loop.
	MaxIterations int `mapstructure:"max_iterations"`
	// AutoFix enables remediation of fixable bugs.
	AutoFix bool `mapstructure:"auto_fix"`
	// StopOnCritical halts the run when a CRITICAL bug cannot be fixed.
	StopOnCritical bool `mapstructure:"stop_on_critical"`
	// Workers bounds intra-phase concurrency (parallel file reads,
	// parallel asset fetches).
	Workers int `mapstructure:"workers"`
}

// PortsConfig holds port-manager settings.
type PortsConfig struct {
	// RangeStart is the first port considered when scanning for a free one.
	RangeStart int `mapstructure:"range_start"`
	// RangeEnd is the last port considered (inclusive).
	RangeEnd int `mapstructure:"range_end"`
	// Preferred maps service names to the port tried first.
	Preferred map[string]int `mapstructure:"preferred"`
}

// VisualConfig holds smoke-test tunables.
type VisualConfig struct {
	// BlankSampleThreshold is the fraction of screenshot samples that must
	// match the dominant color for the page to count as blank (0..1).
	BlankSampleThreshold float64 `mapstructure:"blank_sample_threshold"`
	// ColorTolerance is the per-channel distance within which two sampled
	// pixels count as the same color.
	ColorTolerance int `mapstructure:"color_tolerance"`
}

// TimeoutsConfig holds timeout settings for external calls.
type TimeoutsConfig struct {
	// PortScan bounds the port-enumeration subprocess.
	PortScan time.Duration `mapstructure:"port_scan"`
	// Navigation bounds browser navigation in the smoke test.
	Navigation time.Duration `mapstructure:"navigation"`
	// AssetFetch bounds each individual asset re-fetch.
	AssetFetch time.Duration `mapstructure:"asset_fetch"`
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	// Debounce is how long to wait after the last change before rescanning.
	Debounce time.Duration `mapstructure:"debounce"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (BUILDCHECK_*)
// 2. Project config (.buildcheck.yaml in projectPath or parents)
// 3. User config (~/.config/buildcheck/config.yaml)
// 4. Built-in defaults
func Load(projectPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(projectPath); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("BUILDCHECK")
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Loop defaults
	v.SetDefault("orchestrator.max_iterations", 3)
	v.SetDefault("orchestrator.auto_fix", true)
	v.SetDefault("orchestrator.stop_on_critical", true)
	v.SetDefault("orchestrator.workers", 8)

	// Port defaults
	v.SetDefault("ports.range_start", 3000)
	v.SetDefault("ports.range_end", 9999)
	v.SetDefault("ports.preferred", map[string]int{
		"frontend": 3000,
		"backend":  8000,
		"api":      8080,
	})

	// Visual defaults
	v.SetDefault("visual.blank_sample_threshold", 0.98)
	v.SetDefault("visual.color_tolerance", 8)

	// Timeout defaults
	v.SetDefault("timeouts.port_scan", "5s")
	v.SetDefault("timeouts.navigation", "30s")
	v.SetDefault("timeouts.asset_fetch", "10s")

	// Watch defaults
	v.SetDefault("watch.debounce", "500ms")
}

// getUserConfigDir returns the XDG config directory for buildcheck.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "buildcheck")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "buildcheck")
	}
	return filepath.Join(home, ".config", "buildcheck")
}

// findProjectConfig searches for .buildcheck.yaml in the given directory and parents.
func findProjectConfig(start string) string {
	dir := start
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = cwd
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ".buildcheck.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	cfg := &Config{}
	// Defaults always unmarshal cleanly.
	_ = v.Unmarshal(cfg)
	return cfg
}
