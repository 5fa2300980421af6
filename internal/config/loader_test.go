package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

// Helper function to create a temporary config file
func createTempConfigFile(t *testing.T, dir string, filename string, content Config) string {
	t.Helper()
	tempFilePath := filepath.Join(dir, filename)
	data, err := yaml.Marshal(&content)
	assert.NoError(t, err)
	err = os.WriteFile(tempFilePath, data, 0644)
	assert.NoError(t, err)
	return tempFilePath
}

func mockConfigPaths(t *testing.T, userPath, projectPath string) {
	t.Helper()
	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	t.Cleanup(func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
	})
	getUserConfigPath = func() (string, error) { return userPath, nil }
	getProjectConfigPath = func() (string, error) { return projectPath, nil }
}

func TestLoadConfig_DefaultOnly(t *testing.T) {
	tempDir := t.TempDir()

	// Point to non-existent files so only defaults apply
	mockConfigPaths(t,
		filepath.Join(tempDir, "non-existent-user-config.yaml"),
		filepath.Join(tempDir, "non-existent-project-config.yaml"))

	loadedConfig, err := LoadConfig()
	assert.NoError(t, err)

	assert.Equal(t, GetDefaultConfig(), loadedConfig)
	assert.Equal(t, DefaultProbeTimeoutSeconds, loadedConfig.Probe.TimeoutSeconds)
	assert.Equal(t, DefaultErrorPassThreshold, loadedConfig.Probe.ErrorPassThreshold)
	assert.Equal(t, DefaultMaxConcurrent, loadedConfig.Ecosystem.MaxConcurrent)
}

func TestLoadConfig_UserOverride(t *testing.T) {
	tempDir := t.TempDir()

	userConfDir := filepath.Join(tempDir, userConfigDir)
	err := os.MkdirAll(userConfDir, 0755)
	assert.NoError(t, err)

	userOverride := Config{
		LogLevel: "debug",
		Probe: ProbeSettings{
			TimeoutSeconds: 60,
		},
		Ecosystem: EcosystemSettings{
			EnginePath: "/opt/mcp-validate",
		},
	}
	userPath := createTempConfigFile(t, userConfDir, configFileName, userOverride)

	mockConfigPaths(t, userPath, filepath.Join(tempDir, "no-project-config.yaml"))

	loadedConfig, err := LoadConfig()
	assert.NoError(t, err)

	// Overridden fields
	assert.Equal(t, "debug", loadedConfig.LogLevel)
	assert.Equal(t, 60, loadedConfig.Probe.TimeoutSeconds)
	assert.Equal(t, "/opt/mcp-validate", loadedConfig.Ecosystem.EnginePath)

	// Untouched fields keep their defaults
	assert.Equal(t, DefaultTransport, loadedConfig.Probe.Transport)
	assert.Equal(t, DefaultErrorPassThreshold, loadedConfig.Probe.ErrorPassThreshold)
	assert.Equal(t, DefaultMaxConcurrent, loadedConfig.Ecosystem.MaxConcurrent)
	assert.Equal(t, DefaultShutdownWaitSeconds, loadedConfig.Ecosystem.ShutdownWaitSeconds)
}

func TestLoadConfig_ProjectOverridesUser(t *testing.T) {
	tempDir := t.TempDir()

	userConfDir := filepath.Join(tempDir, "user")
	projectConfDir := filepath.Join(tempDir, "project")
	assert.NoError(t, os.MkdirAll(userConfDir, 0755))
	assert.NoError(t, os.MkdirAll(projectConfDir, 0755))

	userPath := createTempConfigFile(t, userConfDir, configFileName, Config{
		Ecosystem: EcosystemSettings{
			MaxConcurrent: 8,
			TargetsFile:   "user-targets.yaml",
		},
	})
	projectPath := createTempConfigFile(t, projectConfDir, configFileName, Config{
		Ecosystem: EcosystemSettings{
			MaxConcurrent: 2,
		},
	})

	mockConfigPaths(t, userPath, projectPath)

	loadedConfig, err := LoadConfig()
	assert.NoError(t, err)

	// Project wins where it speaks, user survives where it doesn't
	assert.Equal(t, 2, loadedConfig.Ecosystem.MaxConcurrent)
	assert.Equal(t, "user-targets.yaml", loadedConfig.Ecosystem.TargetsFile)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	tempDir := t.TempDir()

	badPath := filepath.Join(tempDir, configFileName)
	err := os.WriteFile(badPath, []byte("probe: [not, a, mapping"), 0644)
	assert.NoError(t, err)

	mockConfigPaths(t, badPath, filepath.Join(tempDir, "no-project-config.yaml"))

	_, err = LoadConfig()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "error loading user config")
}

func TestLoadConfig_HomeDirError(t *testing.T) {
	tempDir := t.TempDir()

	originalGetUserConfigPath := getUserConfigPath
	originalGetProjectConfigPath := getProjectConfigPath
	defer func() {
		getUserConfigPath = originalGetUserConfigPath
		getProjectConfigPath = originalGetProjectConfigPath
	}()

	getUserConfigPath = func() (string, error) {
		return "", os.ErrPermission
	}
	getProjectConfigPath = func() (string, error) {
		return filepath.Join(tempDir, "no-project-config.yaml"), nil
	}

	// User config path failure is non-fatal; defaults still load
	loadedConfig, err := LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, GetDefaultConfig(), loadedConfig)
}

func TestMergeConfigs_KeepWorkspaces(t *testing.T) {
	base := GetDefaultConfig()
	merged := mergeConfigs(base, Config{Ecosystem: EcosystemSettings{KeepWorkspaces: true}})
	assert.True(t, merged.Ecosystem.KeepWorkspaces)

	// A later overlay without the flag must not reset it
	merged = mergeConfigs(merged, Config{})
	assert.True(t, merged.Ecosystem.KeepWorkspaces)
}

func TestGetUserConfigDir(t *testing.T) {
	originalOsUserHomeDir := osUserHomeDir
	defer func() { osUserHomeDir = originalOsUserHomeDir }()

	osUserHomeDir = func() (string, error) { return "/home/probe", nil }

	dir, err := GetUserConfigDir()
	assert.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/probe", userConfigDir), dir)
}
