package browser

import (
	"path/filepath"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autocloudskill/config"
)

type fakeContext struct {
	playwright.BrowserContext
	closed bool
	saved  bool
}

func (f *fakeContext) Close(_ ...playwright.BrowserContextCloseOptions) error {
	f.closed = true
	return nil
}

func (f *fakeContext) StorageState(_ ...string) (*playwright.StorageState, error) {
	f.saved = true
	return &playwright.StorageState{}, nil
}

type fakeBrowser struct {
	playwright.Browser
	closed bool
}

func (f *fakeBrowser) Close(_ ...playwright.BrowserCloseOptions) error {
	f.closed = true
	return nil
}

func TestCloseTearsDownEvenWithKeepOpen(t *testing.T) {
	cfg := &config.Config{
		Browser: config.BrowserConfig{
			KeepOpen:  true,
			StateFile: filepath.Join(t.TempDir(), "state.json"),
		},
	}
	s := NewSession(cfg, zap.NewNop())

	browctx := &fakeContext{}
	br := &fakeBrowser{}
	s.started = true
	s.browctx = browctx
	s.browser = br

	require.NoError(t, s.Close())

	assert.True(t, browctx.saved, "state must be flushed before teardown")
	assert.True(t, browctx.closed)
	assert.True(t, br.closed)
	assert.False(t, s.Started())
}

func TestCloseIsIdempotent(t *testing.T) {
	s := NewSession(&config.Config{}, zap.NewNop())
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
