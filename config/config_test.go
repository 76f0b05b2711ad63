package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.cloudskillsboost.google/users/sign_up", cfg.Target.RegisterURL)
	assert.Equal(t, "https://www.cloudskillsboost.google", cfg.Target.PrimaryOrigin)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.Navigation)
	assert.Equal(t, 2*time.Minute, cfg.Timeouts.CaptchaSolve)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.NotEmpty(t, cfg.Browser.ProfileDir)
	assert.NotEmpty(t, cfg.Browser.StateFile)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("AUTOCLOUDSKILL_BROWSER_HEADLESS", "true")
	t.Setenv("AUTOCLOUDSKILL_TIMEOUTS_NAVIGATION", "45s")
	t.Setenv("AUTOCLOUDSKILL_SERVICES_GEMINI_API_KEY", "test-key")
	t.Setenv("AUTOCLOUDSKILL_LOGGER_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Navigation)
	assert.Equal(t, "test-key", cfg.Services.GeminiAPIKey)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadRespectsExplicitPaths(t *testing.T) {
	t.Setenv("AUTOCLOUDSKILL_BROWSER_PROFILE_DIR", "/tmp/custom-profile")
	t.Setenv("AUTOCLOUDSKILL_BROWSER_STATE_FILE", "/tmp/custom-state.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom-profile", cfg.Browser.ProfileDir)
	assert.Equal(t, "/tmp/custom-state.json", cfg.Browser.StateFile)
}
