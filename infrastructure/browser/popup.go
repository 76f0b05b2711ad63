package browser

import (
	"fmt"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autocloudskill/domain/entities"
)

// popupInitScript rewrites script-initiated window.open calls into same-page
// navigations, except on the primary origin whose own login and console
// flows need native popups. Pages opened natively still arrive through the
// context's OnPage hook.
func popupInitScript(primaryOrigin string) string {
	return fmt.Sprintf(`(() => {
	const primary = %q;
	if (window.location.origin === primary) return;
	window.open = function(url) {
		try {
			const resolved = new URL(url || '', window.location.href);
			window.location.href = resolved.href;
		} catch (e) {}
		return null;
	};
})();`, primaryOrigin)
}

// pageAction is what the policy controller does with a page the site opened.
type pageAction int

const (
	actionClose pageAction = iota
	actionAdopt
	actionRedirect
)

// decidePageAction maps the session policy and the new page's resolved URL to
// an action. A page that never resolved past about:blank is closed under
// every policy; url is "" in that case.
func decidePageAction(policy entities.PagePolicy, url string) pageAction {
	switch {
	case policy == entities.PolicyIgnore:
		return actionClose
	case url == "":
		return actionClose
	case policy == entities.PolicySwitch:
		return actionAdopt
	default:
		return actionRedirect
	}
}

// handleNewPage applies the session's page policy to a page the site opened.
// Runs on playwright's event goroutine, so it only takes the lock for the
// bookkeeping parts.
func (s *Session) handleNewPage(newPage playwright.Page) {
	policy := s.Policy()

	var url string
	if policy != entities.PolicyIgnore {
		url = s.resolvePageURL(newPage)
	}

	switch decidePageAction(policy, url) {
	case actionClose:
		s.log.Debug("closing new page",
			zap.String("policy", string(policy)), zap.String("url", url))
		_ = newPage.Close()

	case actionAdopt:
		s.adoptPage(newPage)
		s.log.Info("switched to new page", zap.String("url", url))

	case actionRedirect:
		_ = newPage.Close()
		page, err := s.ActivePage()
		if err != nil {
			return
		}
		s.log.Info("redirecting active page to popup target", zap.String("url", url))
		if _, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(s.cfg.Timeouts.Navigation.Milliseconds())),
		}); err != nil {
			s.log.Warn("redirect navigation failed", zap.String("url", url), zap.Error(err))
		}
	}
}

// resolvePageURL waits briefly for the page to land on a real URL.
// Returns "" when the page stays blank or dies before settling.
func (s *Session) resolvePageURL(newPage playwright.Page) string {
	err := newPage.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateDomcontentloaded,
		Timeout: playwright.Float(float64(s.cfg.Timeouts.PopupResolve.Milliseconds())),
	})
	if err != nil && newPage.IsClosed() {
		return ""
	}
	url := newPage.URL()
	if url == "" || url == "about:blank" {
		return ""
	}
	return url
}

// adoptPage makes the page the active one and wires its lifecycle hooks.
func (s *Session) adoptPage(newPage playwright.Page) {
	s.mu.Lock()
	s.pages = append(s.pages, newPage)
	s.page = newPage
	s.mu.Unlock()

	newPage.OnDialog(func(dialog playwright.Dialog) {
		dialog.Accept()
	})

	newPage.OnClose(func(closedPage playwright.Page) {
		s.mu.Lock()
		defer s.mu.Unlock()

		for i, p := range s.pages {
			if p == closedPage {
				s.pages = append(s.pages[:i], s.pages[i+1:]...)
				break
			}
		}
		if s.page == closedPage && len(s.pages) > 0 {
			s.page = s.pages[0]
		}
	})
}
