// Package config provides configuration loading and management for niiutil.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Resampling parameters
	Resample struct {
		// Order is the default interpolation order: 0 nearest-neighbor,
		// 1 trilinear, 2 and above tricubic
		Order int `yaml:"order"`

		// Strategy selects the execution strategy, "full3D" or "slice2D"
		Strategy string `yaml:"strategy"`

		// MemorySafe processes one output plane at a time in the full3D
		// strategy, bounding peak memory
		MemorySafe bool `yaml:"memorySafe"`
	} `yaml:"resample"`

	// Extraction parameters
	Extract struct {
		// Reslice resamples mismatched volumes into the reference space
		// instead of rejecting them
		Reslice bool `yaml:"reslice"`
	} `yaml:"extract"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default resampling parameters
	cfg.Resample.Order = 1
	cfg.Resample.Strategy = "full3D"
	cfg.Resample.MemorySafe = true

	// Set default extraction parameters
	cfg.Extract.Reslice = false

	// Set default output parameters
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
