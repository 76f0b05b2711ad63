package browser

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/entities"
)

func TestDecidePageAction(t *testing.T) {
	tests := []struct {
		name   string
		policy entities.PagePolicy
		url    string
		want   pageAction
	}{
		{"redirect policy navigates current page", entities.PolicyRedirect, "https://example.test/x", actionRedirect},
		{"redirect policy drops blank page", entities.PolicyRedirect, "", actionClose},
		{"switch policy adopts resolved page", entities.PolicySwitch, "https://example.test/x", actionAdopt},
		{"switch policy drops blank page", entities.PolicySwitch, "", actionClose},
		{"ignore policy always closes", entities.PolicyIgnore, "https://example.test/x", actionClose},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decidePageAction(tt.policy, tt.url))
		})
	}
}

// fakePage captures the lifecycle hooks adoptPage wires up.
type fakePage struct {
	playwright.Page
	onClose func(playwright.Page)
}

func (f *fakePage) OnDialog(fn func(playwright.Dialog)) {}

func (f *fakePage) OnClose(fn func(playwright.Page)) {
	f.onClose = fn
}

func newStartedSession(t *testing.T, first playwright.Page) *Session {
	t.Helper()
	s := NewSession(&config.Config{}, zap.NewNop())
	s.started = true
	s.page = first
	s.pages = []playwright.Page{first}
	return s
}

func TestAdoptPageSwitchesActivePage(t *testing.T) {
	original := &fakePage{}
	s := newStartedSession(t, original)

	popup := &fakePage{}
	s.adoptPage(popup)

	active, err := s.ActivePage()
	require.NoError(t, err)
	assert.Same(t, playwright.Page(popup), active)
}

func TestClosingAdoptedPageRestoresPrevious(t *testing.T) {
	original := &fakePage{}
	s := newStartedSession(t, original)

	popup := &fakePage{}
	s.adoptPage(popup)
	require.NotNil(t, popup.onClose)

	popup.onClose(popup)

	active, err := s.ActivePage()
	require.NoError(t, err)
	assert.Same(t, playwright.Page(original), active)
	assert.Len(t, s.pages, 1)
}

func TestActivateRestoresExplicitly(t *testing.T) {
	original := &fakePage{}
	s := newStartedSession(t, original)

	popup := &fakePage{}
	s.adoptPage(popup)
	s.Activate(original)

	active, err := s.ActivePage()
	require.NoError(t, err)
	assert.Same(t, playwright.Page(original), active)
}
