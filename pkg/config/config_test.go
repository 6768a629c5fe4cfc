package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOrchestratorDefaults(t *testing.T) {
	cfg, err := LoadOrchestrator(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, 60, cfg.InactivityTimeout)
	assert.False(t, cfg.ReuseRunnerMode)
	assert.Equal(t, "localhost", cfg.RunnersHost)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "runner-image", cfg.Image)
	assert.Equal(t, 3000, cfg.ContainerPort)
	assert.Equal(t, 60*time.Second, cfg.InactivityDuration())
	assert.False(t, cfg.Production())
}

func TestLoadOrchestratorEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("INACTIVITY_TIMEOUT_SECONDS", "120")
	t.Setenv("REUSE_RUNNER_MODE", "true")
	t.Setenv("RUNNERS_HOST", "runners.internal")
	t.Setenv("NODE_ENV", "production")

	cfg, err := LoadOrchestrator(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 120*time.Second, cfg.InactivityDuration())
	assert.True(t, cfg.ReuseRunnerMode)
	assert.Equal(t, "runners.internal", cfg.RunnersHost)
	assert.True(t, cfg.Production())
}

func TestLoadOrchestratorYAMLOverlay(t *testing.T) {
	t.Setenv("PORT", "8080")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9090\nimage: custom-runner\n"), 0o644))

	cfg, err := LoadOrchestrator(context.Background(), path)
	require.NoError(t, err)

	// The file wins over the environment; untouched fields keep env defaults.
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "custom-runner", cfg.Image)
	assert.Equal(t, "localhost", cfg.RunnersHost)
}

func TestLoadOrchestratorMissingFile(t *testing.T) {
	_, err := LoadOrchestrator(context.Background(), "/no/such/config.yaml")
	assert.Error(t, err)
}

func TestLoadOrchestratorValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "port too low", key: "PORT", value: "0"},
		{name: "port too high", key: "PORT", value: "70000"},
		{name: "zero timeout", key: "INACTIVITY_TIMEOUT_SECONDS", value: "0"},
		{name: "empty image", key: "RUNNER_IMAGE", value: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadOrchestrator(context.Background(), "")
			assert.Error(t, err)
		})
	}
}

func TestLoadRunnerDefaults(t *testing.T) {
	cfg, err := LoadRunner(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/", cfg.ContainerRoot)
	assert.Equal(t, "taylored", cfg.TayloredBin)
}

func TestLoadRunnerPortValidation(t *testing.T) {
	t.Setenv("PORT", "-1")
	_, err := LoadRunner(context.Background())
	assert.Error(t, err)
}
