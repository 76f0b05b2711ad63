package automation

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autocloudskill/config"
)

func newTestAutomation(t *testing.T) *Automation {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Browser: config.BrowserConfig{
			ProfileDir: filepath.Join(dir, "profile"),
			StateFile:  filepath.Join(dir, "state.json"),
		},
		Timeouts: config.TimeoutConfig{
			Operation: 5 * time.Second,
		},
	}
	core, err := New(cfg, zap.NewNop(), Options{})
	require.NoError(t, err)
	return core
}

func TestShutdownIsIdempotent(t *testing.T) {
	core := newTestAutomation(t)

	assert.NoError(t, core.Shutdown())
	assert.NoError(t, core.Shutdown())
}

func TestRegisterGeneratedWithoutProvidersFails(t *testing.T) {
	core := newTestAutomation(t)
	defer core.Shutdown()

	result := core.RegisterGenerated()
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not configured")
}

func TestAwaitAndConfirmWithoutMailboxFails(t *testing.T) {
	core := newTestAutomation(t)
	defer core.Shutdown()

	result := core.AwaitAndConfirm("a@b.test", "Secret123!")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not configured")
}

func TestFailedRunsAreRecorded(t *testing.T) {
	core := newTestAutomation(t)
	defer core.Shutdown()

	_ = core.RegisterGenerated()

	history, err := core.History()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Success)
}

func TestGenerateVideoWithoutKeyFails(t *testing.T) {
	core := newTestAutomation(t)
	defer core.Shutdown()

	result := core.GenerateVideo("  ", "a paper boat on a rain puddle")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "API key")
}
