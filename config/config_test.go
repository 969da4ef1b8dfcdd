package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beezlebug/agentgraph/config"
)

func TestLoad_DefaultsWithNoEnv(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.StoragePath)
	assert.NotEmpty(t, cfg.DefaultLLMModel)
	assert.NotEmpty(t, cfg.DefaultLLMAPIURL)
	assert.Equal(t, time.Second, cfg.SchedulerTickInterval)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("AGENTGRAPH_STORAGE_PATH", "/tmp/custom.db")
	t.Setenv("AGENTGRAPH_LLM_MODEL", "gpt-4o")
	t.Setenv("AGENTGRAPH_SCHEDULER_TICK_SECONDS", "2.5")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", cfg.StoragePath)
	assert.Equal(t, "gpt-4o", cfg.DefaultLLMModel)
	assert.Equal(t, 2500*time.Millisecond, cfg.SchedulerTickInterval)
}

func TestLoad_MalformedTickIntervalFallsBackToDefault(t *testing.T) {
	t.Setenv("AGENTGRAPH_SCHEDULER_TICK_SECONDS", "not-a-number")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.SchedulerTickInterval)
}
