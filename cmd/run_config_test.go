package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthdes/desim/sim"
	"github.com/healthdes/desim/sim/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRunConfig_OverridesOnlyGivenKeys(t *testing.T) {
	// GIVEN a file that sets two keys
	path := writeFile(t, "run.yaml", "server_count: 2\nrun_length: 60\n")

	// WHEN it is loaded
	cfg, err := LoadRunConfig(path)

	// THEN the given keys win and the rest keep their defaults
	require.NoError(t, err)
	want := model.DefaultConfig()
	want.ServerCount = 2
	want.RunLength = 60
	assert.Equal(t, want, cfg)
}

func TestLoadRunConfig_RejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "typo.yaml", "server_cuont: 2\n")

	_, err := LoadRunConfig(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "server_cuont")
}

func TestLoadRunConfig_EmptyFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")

	cfg, err := LoadRunConfig(path)

	require.NoError(t, err)
	assert.Equal(t, model.DefaultConfig(), cfg)
}

func TestLoadRunConfig_MissingFile(t *testing.T) {
	_, err := LoadRunConfig(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadRunConfig_ShippedClinicConfig(t *testing.T) {
	cfg, err := LoadRunConfig(filepath.Join("..", "configs", "clinic.yaml"))

	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.ServerCount)
	require.NotNil(t, cfg.FirstObservation)
	require.NotNil(t, cfg.AuditInterval)
	assert.Equal(t, 0.0, *cfg.FirstObservation)
	assert.Equal(t, 120.0, *cfg.AuditInterval)
}

func TestResolveConfig_FlagsOverrideFile(t *testing.T) {
	resetRunFlags(t)
	path := writeFile(t, "run.yaml", "server_count: 2\nentropy: 7\n")
	require.NoError(t, runCmd.Flags().Set("config", path))
	require.NoError(t, runCmd.Flags().Set("servers", "3"))

	cfg, err := resolveConfig(runCmd)

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ServerCount)
	assert.Equal(t, int64(7), cfg.Entropy)
	assert.Nil(t, cfg.FirstObservation)
}

func TestResolveConfig_ConfigFromEnvironment(t *testing.T) {
	resetRunFlags(t)
	path := writeFile(t, "env.yaml", "mean_service_duration: 3\n")
	t.Setenv(envConfigPath, path)

	cfg, err := resolveConfig(runCmd)

	require.NoError(t, err)
	assert.Equal(t, 3.0, cfg.MeanServiceDuration)
}

func TestResolveConfig_InvalidFlagValue(t *testing.T) {
	resetRunFlags(t)
	require.NoError(t, runCmd.Flags().Set("servers", "0"))

	_, err := resolveConfig(runCmd)

	assert.ErrorIs(t, err, sim.ErrConfiguration)
}

func TestEnvDefault(t *testing.T) {
	resetRunFlags(t)
	t.Setenv(envLogLevel, "debug")

	assert.Equal(t, "debug", envDefault(runCmd, "log", envLogLevel, logLevel))

	require.NoError(t, runCmd.Flags().Set("log", "error"))
	assert.Equal(t, "error", envDefault(runCmd, "log", envLogLevel, logLevel))
}

func TestLoadDotEnv_DoesNotOverrideEnvironment(t *testing.T) {
	old := dotEnvPath
	t.Cleanup(func() { dotEnvPath = old })
	dotEnvPath = writeFile(t, ".env", envLogLevel+"=trace\n")
	t.Setenv(envLogLevel, "info")

	loadDotEnv()

	assert.Equal(t, "info", os.Getenv(envLogLevel))
}
