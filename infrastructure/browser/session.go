package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/entities"
)

// Session owns the playwright driver, one browser context and the set of open
// pages. It is created cold and launches the real browser on first Start.
// All methods are safe for concurrent use, although in practice every call
// arrives serialized through the automation bridge.
type Session struct {
	cfg *config.Config
	log *zap.Logger

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	browctx playwright.BrowserContext
	page    playwright.Page
	pages   []playwright.Page
	policy  entities.PagePolicy
	started bool
}

// NewSession - creates a session without touching the browser
func NewSession(cfg *config.Config, log *zap.Logger) *Session {
	return &Session{
		cfg:    cfg,
		log:    log.Named("browser"),
		policy: entities.PolicyRedirect,
	}
}

// Started reports whether the browser has been launched.
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Start launches the browser, builds the context and opens the first page.
// Calling Start on a running session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.cfg.Browser.Headless),
		SlowMo:   playwright.Float(s.cfg.Browser.SlowMo),
		Args: []string{
			"--disable-popup-blocking",
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-infobars",
			"--disable-notifications",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	contextOptions := playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  1280,
			Height: 800,
		},
		JavaScriptEnabled: playwright.Bool(true),
		AcceptDownloads:   playwright.Bool(true),
		UserAgent:         playwright.String(s.cfg.Browser.UserAgent),
		Locale:            playwright.String(s.cfg.Browser.Locale),
		TimezoneId:        playwright.String(s.cfg.Browser.TimezoneID),
	}

	if state := s.loadStorageState(); state != nil {
		contextOptions.StorageState = state
	}

	browctx, err := browser.NewContext(contextOptions)
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create context: %w", err)
	}

	if err := browctx.AddInitScript(playwright.Script{
		Content: playwright.String(popupInitScript(s.cfg.Target.PrimaryOrigin)),
	}); err != nil {
		s.log.Warn("failed to install popup init script", zap.Error(err))
	}

	page, err := browctx.NewPage()
	if err != nil {
		browctx.Close()
		browser.Close()
		pw.Stop()
		return fmt.Errorf("failed to create page: %w", err)
	}

	s.pw = pw
	s.browser = browser
	s.browctx = browctx
	s.page = page
	s.pages = []playwright.Page{page}
	s.started = true

	page.OnDialog(func(dialog playwright.Dialog) {
		dialog.Accept()
	})

	browctx.OnPage(func(newPage playwright.Page) {
		s.handleNewPage(newPage)
	})

	s.log.Info("browser session started",
		zap.Bool("headless", s.cfg.Browser.Headless),
		zap.String("policy", string(s.policy)))

	return nil
}

// loadStorageState restores cookies and origins from the previous run.
func (s *Session) loadStorageState() *playwright.OptionalStorageState {
	path := s.cfg.Browser.StateFile
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var state playwright.StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		s.log.Warn("stored session state is unreadable, starting fresh",
			zap.String("path", path), zap.Error(err))
		return nil
	}
	s.log.Info("restored session state", zap.String("path", path))
	return state.ToOptionalStorageState()
}

// ActivePage returns the page every operation should act on.
func (s *Session) ActivePage() (playwright.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.page == nil {
		return nil, fmt.Errorf("browser session is not started")
	}
	return s.page, nil
}

// Context exposes the browser context for storage state and popup waits.
func (s *Session) Context() (playwright.BrowserContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.browctx == nil {
		return nil, fmt.Errorf("browser session is not started")
	}
	return s.browctx, nil
}

// Activate makes the given page the session's active page again. Used by
// flows that temporarily adopted a popup and want the previous page back.
func (s *Session) Activate(page playwright.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = page
}

// SetPolicy changes how subsequently opened pages are treated.
func (s *Session) SetPolicy(policy entities.PagePolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policy = policy
}

// Policy returns the current new-page policy.
func (s *Session) Policy() entities.PagePolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy
}

// Navigate drives the active page to the URL and waits for network idle.
func (s *Session) Navigate(ctx context.Context, url string) error {
	page, err := s.ActivePage()
	if err != nil {
		return err
	}
	_, err = page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(s.cfg.Timeouts.Navigation.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// NewIsolatedPage opens a fresh browsing context with its own cookie jar
// and one page in it. The caller owns the returned context and must close
// it. Used by flows that need an account-neutral view of the site.
func (s *Session) NewIsolatedPage() (playwright.BrowserContext, playwright.Page, error) {
	s.mu.Lock()
	br := s.browser
	s.mu.Unlock()

	if br == nil {
		return nil, nil, fmt.Errorf("browser session is not started")
	}

	isolated, err := br.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(s.cfg.Browser.UserAgent),
		Locale:    playwright.String(s.cfg.Browser.Locale),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create isolated context: %w", err)
	}
	page, err := isolated.NewPage()
	if err != nil {
		isolated.Close()
		return nil, nil, fmt.Errorf("failed to create isolated page: %w", err)
	}
	s.log.Info("isolated context opened")
	return isolated, page, nil
}

// SaveState persists cookies and local storage for the next run.
func (s *Session) SaveState() error {
	s.mu.Lock()
	browctx := s.browctx
	path := s.cfg.Browser.StateFile
	s.mu.Unlock()

	if browctx == nil || path == "" {
		return nil
	}

	if _, err := browctx.StorageState(path); err != nil {
		if isClosedError(err) {
			return nil
		}
		return fmt.Errorf("failed to save session state: %w", err)
	}
	s.log.Debug("session state saved", zap.String("path", path))
	return nil
}

// Close saves state and tears everything down. Keep-open only applies at the
// end of a run (the flows skip their teardown call); an explicit Close always
// releases the browser.
func (s *Session) Close() error {
	var closeErr error
	if err := s.SaveState(); err != nil {
		closeErr = err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browctx != nil {
		if err := s.browctx.Close(); err != nil && !isClosedError(err) {
			closeErr = joinErr(closeErr, fmt.Errorf("failed to close context: %w", err))
		}
		s.browctx = nil
	}
	if s.browser != nil {
		if err := s.browser.Close(); err != nil && !isClosedError(err) {
			closeErr = joinErr(closeErr, fmt.Errorf("failed to close browser: %w", err))
		}
		s.browser = nil
	}
	if s.pw != nil {
		if err := s.pw.Stop(); err != nil && !isClosedError(err) {
			closeErr = joinErr(closeErr, fmt.Errorf("failed to stop playwright: %w", err))
		}
		s.pw = nil
	}

	s.page = nil
	s.pages = nil
	s.started = false

	return closeErr
}

// isClosedError reports whether the error only says the target already went
// away. Those are expected during teardown.
func isClosedError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "closed") || strings.Contains(msg, "target closed")
}

func joinErr(existing, next error) error {
	if existing == nil {
		return next
	}
	return fmt.Errorf("%v; %w", existing, next)
}
