package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir
var osGetwd = os.Getwd

const (
	userConfigDir    = ".config/mcpvet"
	projectConfigDir = ".mcpvet"
	configFileName   = "config.yaml"
)

// LoadConfig loads the mcpvet configuration by layering default, user, and
// project settings.
func LoadConfig() (Config, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. Determine user-specific configuration path
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// Log this error but don't fail; user config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else {
		if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
			userConfig, err := loadConfigFromFile(userConfigPath)
			if err != nil {
				return Config{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
			}
			config = mergeConfigs(config, userConfig)
		}
	}

	// 3. Determine project-specific configuration path
	projectConfigPath, err := getProjectConfigPath()
	if err != nil {
		// Log this error but don't fail; project config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine project config path: %v\n", err)
	} else {
		if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
			projectConfig, err := loadConfigFromFile(projectConfigPath)
			if err != nil {
				return Config{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
			}
			config = mergeConfigs(config, projectConfig)
		}
	}

	return config, nil
}

var getUserConfigPath = func() (string, error) {
	homeDir, err := osUserHomeDir() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

var getProjectConfigPath = func() (string, error) {
	wd, err := osGetwd() // Use mockable variable
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, projectConfigDir, configFileName), nil
}

// loadConfigFromFile loads a Config from a YAML file.
func loadConfigFromFile(filePath string) (Config, error) {
	var config Config
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config. Zero values in the
// overlay leave the base untouched, so a sparse file overrides only what it
// names.
func mergeConfigs(base, overlay Config) Config {
	merged := base

	if overlay.LogLevel != "" {
		merged.LogLevel = overlay.LogLevel
	}

	if overlay.Probe.TimeoutSeconds != 0 {
		merged.Probe.TimeoutSeconds = overlay.Probe.TimeoutSeconds
	}
	if overlay.Probe.Transport != "" {
		merged.Probe.Transport = overlay.Probe.Transport
	}
	if overlay.Probe.ErrorPassThreshold != 0 {
		merged.Probe.ErrorPassThreshold = overlay.Probe.ErrorPassThreshold
	}

	if overlay.Ecosystem.MaxConcurrent != 0 {
		merged.Ecosystem.MaxConcurrent = overlay.Ecosystem.MaxConcurrent
	}
	if overlay.Ecosystem.TimeoutSeconds != 0 {
		merged.Ecosystem.TimeoutSeconds = overlay.Ecosystem.TimeoutSeconds
	}
	if overlay.Ecosystem.StartupGraceSeconds != 0 {
		merged.Ecosystem.StartupGraceSeconds = overlay.Ecosystem.StartupGraceSeconds
	}
	if overlay.Ecosystem.ShutdownWaitSeconds != 0 {
		merged.Ecosystem.ShutdownWaitSeconds = overlay.Ecosystem.ShutdownWaitSeconds
	}
	if overlay.Ecosystem.EnginePath != "" {
		merged.Ecosystem.EnginePath = overlay.Ecosystem.EnginePath
	}
	if overlay.Ecosystem.EngineSourceDir != "" {
		merged.Ecosystem.EngineSourceDir = overlay.Ecosystem.EngineSourceDir
	}
	if overlay.Ecosystem.TargetsFile != "" {
		merged.Ecosystem.TargetsFile = overlay.Ecosystem.TargetsFile
	}
	if overlay.Ecosystem.OutputFile != "" {
		merged.Ecosystem.OutputFile = overlay.Ecosystem.OutputFile
	}
	if overlay.Ecosystem.KeepWorkspaces {
		merged.Ecosystem.KeepWorkspaces = true
	}

	return merged
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}
