package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "file:uplift.db")
	t.Setenv("SANDBOX_API_KEY", "sb-key")
	t.Setenv("BROWSER_USE_API_KEY", "bu-key")
	t.Setenv("GOOGLE_GENERATIVE_AI_API_KEY", "g-key")
	t.Setenv("ANTHROPIC_API_KEY", "a-key")
	t.Setenv("BUS_EVENT_KEY", "bus-key")
	t.Setenv("CODE_AGENT_CALLBACK_URL", "https://api.example.com")
}

func TestLoad_EnvOnly(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file:uplift.db", cfg.Store.DSN)
	assert.Equal(t, DefaultBind, cfg.Server.Bind)
	assert.Equal(t, DefaultImplementWait, cfg.CodeAgent.MaxWait)
	assert.Equal(t, DefaultMaxConcurrent, cfg.CodeAgent.MaxConcurrent)
	assert.False(t, cfg.ObservabilityEnabled())
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("UPLIFT_BIND", ":9999")

	path := filepath.Join(t.TempDir(), "uplift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  bind: ":8080"
browser:
  max_wait: 2m
  poll_interval: 1s
code_agent:
  max_concurrent: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Bind, "env should win over file")
	assert.Equal(t, 2*time.Minute, cfg.Browser.MaxWait)
	assert.Equal(t, time.Second, cfg.Browser.PollInterval)
	assert.Equal(t, 5, cfg.CodeAgent.MaxConcurrent)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	setRequiredEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.NoError(t, err)
}

func TestValidate_ReportsEveryMissingKey(t *testing.T) {
	cfg := Default()
	cfg.Store.DSN = "file:test.db"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SANDBOX_API_KEY")
	assert.Contains(t, err.Error(), "BROWSER_USE_API_KEY")
	assert.Contains(t, err.Error(), "GOOGLE_GENERATIVE_AI_API_KEY")
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
	assert.Contains(t, err.Error(), "BUS_EVENT_KEY")
	assert.Contains(t, err.Error(), "CODE_AGENT_CALLBACK_URL")
	assert.NotContains(t, err.Error(), "DATABASE_URL")
}

func TestValidate_ProviderSelection(t *testing.T) {
	base := Default()
	base.Store.DSN = "file:test.db"
	base.Sandbox.APIKey = "sb-key"
	base.Browser.APIKey = "bu-key"
	base.AI.AnthropicAPIKey = "sk-ant"
	base.Bus.EventKey = "evt-key"
	base.CodeAgent.CallbackURL = "https://uplift.example/code-agent"

	cfg := base
	cfg.AI.Provider = AIProviderAnthropic
	assert.NoError(t, cfg.Validate(), "anthropic generation needs no google key")

	cfg = base
	require.Error(t, cfg.Validate())
	assert.Contains(t, cfg.Validate().Error(), "GOOGLE_GENERATIVE_AI_API_KEY")

	cfg = base
	cfg.AI.Provider = "openrouter"
	require.Error(t, cfg.Validate())
	assert.Contains(t, cfg.Validate().Error(), `unknown provider "openrouter"`)
}

func TestObservabilityEnabled(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.ObservabilityEnabled())
	cfg.Observe.APIKey = "obs-key"
	assert.True(t, cfg.ObservabilityEnabled())
}
