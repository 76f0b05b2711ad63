package automation

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/entities"
	"autocloudskill/infrastructure/browser"
	"autocloudskill/infrastructure/captcha"
)

// Localized accessible names for the lab's start control and the console
// link. New locales are additive.
var startLabTexts = []string{
	"Start Lab",
	"Start lab",
	"Mulai Lab",
	"Mulai lab",
}

var openConsoleTexts = []string{
	"Open Google Cloud console",
	"Open Google Cloud Console",
	"Open Cloud Console",
	"Open Console",
	"Buka Google Cloud console",
}

var agreeButtonTexts = []string{
	"Agree and continue",
	"AGREE AND CONTINUE",
	"I agree",
	"Agree",
	"Accept",
}

// apiKeyPattern matches the generated credential's known format.
var apiKeyPattern = regexp.MustCompile(`^AIza[0-9A-Za-z_\-]{30,}$`)

// ValidAPIKey reports whether a credential-display value is a real key
// rather than a mask or placeholder.
func ValidAPIKey(value string) bool {
	return apiKeyPattern.MatchString(value)
}

// ParseProjectID pulls the provisioned project identifier out of a console
// URL's query string.
func ParseProjectID(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	if project := parsed.Query().Get("project"); project != "" {
		return project
	}
	// Some console pages carry the project inside the fragment's query.
	if idx := strings.Index(parsed.Fragment, "project="); idx >= 0 {
		rest := parsed.Fragment[idx+len("project="):]
		if amp := strings.IndexAny(rest, "&/"); amp >= 0 {
			rest = rest[:amp]
		}
		return rest
	}
	return ""
}

// LabFlow runs the provisioning sub-flow: start the lab on the main
// session, open the cloud console in an isolated context, accept terms,
// then extract the generated credential. Each stage is bounded; a timeout
// reports the furthest stage reached instead of failing opaquely.
type LabFlow struct {
	cfg      *config.Config
	session  *browser.Session
	resolver *browser.Resolver
	solver   *captcha.Solver
	log      *zap.Logger
}

// NewLabFlow - builds the provisioning sub-flow
func NewLabFlow(cfg *config.Config, session *browser.Session, resolver *browser.Resolver, solver *captcha.Solver, log *zap.Logger) *LabFlow {
	return &LabFlow{
		cfg:      cfg,
		session:  session,
		resolver: resolver,
		solver:   solver,
		log:      log.Named("lab"),
	}
}

// Run drives the whole sub-flow against the lab page URL.
func (l *LabFlow) Run(ctx context.Context, labURL string) entities.RunResult {
	result := entities.RunResult{
		RunID: uuid.NewString(),
		State: entities.StateProvisioning,
	}
	recorder := &entities.StepRecorder{}
	result.WithPayload("stage", "start_lab")

	if err := l.session.Start(ctx); err != nil {
		return l.fail(result, recorder, fmt.Errorf("%w: %v", ErrBrowserInit, err))
	}

	if err := l.session.Navigate(ctx, labURL); err != nil {
		return l.fail(result, recorder, fmt.Errorf("%w: %v", ErrNavigation, err))
	}

	if err := l.startLab(ctx); err != nil {
		return l.fail(result, recorder, err)
	}
	recorder.Record("start_lab")
	result.WithPayload("stage", "open_console")

	isolated, consolePage, err := l.openConsole(ctx)
	if err != nil {
		return l.fail(result, recorder, err)
	}
	defer isolated.Close()
	recorder.Record("open_console")
	result.WithPayload("stage", "accept_terms")

	if err := l.acceptTerms(ctx, consolePage); err != nil {
		// Terms may already be accepted for this identity; keep going but
		// note the outcome.
		recorder.RecordDetail("accept_terms", err.Error(), false)
		l.log.Warn("terms acceptance inconclusive", zap.Error(err))
	} else {
		recorder.Record("accept_terms")
	}
	result.WithPayload("stage", "extract_key")

	projectID := ParseProjectID(consolePage.URL())
	if projectID == "" {
		return l.fail(result, recorder, fmt.Errorf("%w: no project id in console URL %s",
			ErrStageTimeout, consolePage.URL()))
	}
	result.WithPayload("project_id", projectID)

	key, err := l.extractGeneratedKey(ctx, consolePage, projectID)
	if err != nil {
		return l.fail(result, recorder, err)
	}
	recorder.Record("extract_key")

	result.State = entities.StateSuccess
	result.Success = true
	result.Steps = recorder.Steps()
	result.WithPayload("api_key", key)
	return result
}

// startLab clicks the localized start control and clears any challenge the
// site raises in response.
func (l *LabFlow) startLab(ctx context.Context) error {
	page, err := l.session.ActivePage()
	if err != nil {
		return err
	}

	clicked := false
	for _, text := range startLabTexts {
		loc := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{Name: text})
		if count, err := loc.Count(); err != nil || count == 0 {
			loc = page.Locator(fmt.Sprintf("button:has-text('%s'), a:has-text('%s')", text, text))
			if count, err := loc.Count(); err != nil || count == 0 {
				continue
			}
		}
		if err := loc.First().Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(float64(l.cfg.Timeouts.ElementWait.Milliseconds())),
		}); err == nil {
			clicked = true
			break
		}
	}
	if !clicked {
		return fmt.Errorf("start control not found")
	}

	if captcha.Present(page) {
		if err := l.solver.Solve(ctx, page); err != nil {
			return fmt.Errorf("%w: %v", ErrCaptchaUnsolved, err)
		}
	}
	return nil
}

// openConsole finds the "open console" control, resolves its target URL and
// opens it in a new isolated context. Bounded retry loop because the
// control renders only after the lab environment provisions.
func (l *LabFlow) openConsole(ctx context.Context) (playwright.BrowserContext, playwright.Page, error) {
	page, err := l.session.ActivePage()
	if err != nil {
		return nil, nil, err
	}

	deadline := time.Now().Add(l.cfg.Timeouts.ConsoleOpen)
	for time.Now().Before(deadline) {
		target := l.findConsoleTarget(page)
		if target != "" {
			isolated, consolePage, err := l.session.NewIsolatedPage()
			if err != nil {
				return nil, nil, err
			}
			if _, err := consolePage.Goto(target, playwright.PageGotoOptions{
				WaitUntil: playwright.WaitUntilStateDomcontentloaded,
				Timeout:   playwright.Float(float64(l.cfg.Timeouts.Navigation.Milliseconds())),
			}); err != nil {
				isolated.Close()
				return nil, nil, fmt.Errorf("%w: console navigation: %v", ErrNavigation, err)
			}
			return isolated, consolePage, nil
		}

		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, nil, fmt.Errorf("%w: console control not found within %s",
		ErrStageTimeout, l.cfg.Timeouts.ConsoleOpen)
}

// findConsoleTarget returns the console URL from the control's href, or by
// clicking it and letting the new page resolve on the main session.
func (l *LabFlow) findConsoleTarget(page playwright.Page) string {
	for _, text := range openConsoleTexts {
		for _, pattern := range []string{"a:has-text('%s')", "button:has-text('%s')"} {
			loc := page.Locator(fmt.Sprintf(pattern, text))
			if count, err := loc.Count(); err != nil || count == 0 {
				continue
			}
			control := loc.First()
			if href, err := control.GetAttribute("href"); err == nil && strings.TrimSpace(href) != "" {
				return href
			}

			// No href: click, let the spawned page get adopted just long
			// enough to read its URL, then close it and put the lab page
			// back as the active one.
			previous := l.session.Policy()
			l.session.SetPolicy(entities.PolicySwitch)
			if err := control.Click(); err != nil {
				l.session.SetPolicy(previous)
				continue
			}
			time.Sleep(l.cfg.Timeouts.PopupResolve)
			l.session.SetPolicy(previous)

			if adopted, err := l.session.ActivePage(); err == nil && adopted != page {
				target := adopted.URL()
				_ = adopted.Close()
				l.session.Activate(page)
				if target != "" && target != "about:blank" {
					return target
				}
			}
		}
	}
	return ""
}

// acceptTerms checks the agreement checkbox and clicks the agree control,
// searching the top page and its frames. Polls because the button may stay
// disabled briefly.
func (l *LabFlow) acceptTerms(ctx context.Context, page playwright.Page) error {
	deadline := time.Now().Add(l.cfg.Timeouts.ConsoleOpen)
	agreePattern := regexp.MustCompile(`(?i)I agree to the Google Cloud`)

	for time.Now().Before(deadline) {
		scopes := []playwright.Locator{
			page.GetByRole(*playwright.AriaRoleCheckbox, playwright.PageGetByRoleOptions{Name: agreePattern}),
		}
		for _, frame := range page.Frames() {
			scopes = append(scopes,
				frame.GetByRole(*playwright.AriaRoleCheckbox, playwright.FrameGetByRoleOptions{Name: agreePattern}))
		}

		for _, checkbox := range scopes {
			count, err := checkbox.Count()
			if err != nil || count == 0 {
				continue
			}
			if err := checkbox.First().Check(); err != nil {
				continue
			}
			if l.clickAgreeButton(page) {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return fmt.Errorf("%w: terms dialog not handled within %s", ErrStageTimeout, l.cfg.Timeouts.ConsoleOpen)
}

func (l *LabFlow) clickAgreeButton(page playwright.Page) bool {
	for _, text := range agreeButtonTexts {
		loc := page.Locator(fmt.Sprintf("button:has-text('%s')", text))
		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}
		button := loc.First()
		if enabled, err := button.IsEnabled(); err != nil || !enabled {
			continue
		}
		if err := button.Click(); err == nil {
			return true
		}
	}
	return false
}

// extractGeneratedKey enables the API, creates a credential and polls the
// masked display field until it holds a real key.
func (l *LabFlow) extractGeneratedKey(ctx context.Context, page playwright.Page, projectID string) (string, error) {
	marketplaceURL := fmt.Sprintf(
		"https://console.cloud.google.com/marketplace/product/google/generativelanguage.googleapis.com?project=%s",
		projectID)
	if _, err := page.Goto(marketplaceURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(l.cfg.Timeouts.Navigation.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("%w: marketplace navigation: %v", ErrNavigation, err)
	}

	enableButton := page.GetByRole(*playwright.AriaRoleButton, playwright.PageGetByRoleOptions{
		Name: regexp.MustCompile(`(?i)Enable|Manage`),
	})
	if err := enableButton.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(30000),
	}); err == nil {
		if text, err := enableButton.First().TextContent(); err == nil &&
			strings.Contains(strings.ToLower(text), "enable") {
			if err := enableButton.First().Click(); err == nil {
				time.Sleep(5 * time.Second)
			}
		}
	}

	credentialsURL := fmt.Sprintf("https://console.cloud.google.com/apis/credentials?project=%s", projectID)
	if _, err := page.Goto(credentialsURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(l.cfg.Timeouts.Navigation.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("%w: credentials navigation: %v", ErrNavigation, err)
	}

	if !l.clickCreateCredentials(page) {
		return "", fmt.Errorf("%w: create-credentials control not found", ErrStageTimeout)
	}

	menuItem := page.GetByRole(*playwright.AriaRoleMenuitem, playwright.PageGetByRoleOptions{Name: "API key"})
	if err := menuItem.First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(5000),
	}); err != nil {
		return "", fmt.Errorf("%w: API key menu item: %v", ErrStageTimeout, err)
	}

	keyField := page.Locator("input.cfc-code-snippet-input")
	if err := keyField.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(60000),
	}); err != nil {
		return "", fmt.Errorf("%w: key display did not appear: %v", ErrStageTimeout, err)
	}

	deadline := time.Now().Add(l.cfg.Timeouts.KeyExtraction)
	for time.Now().Before(deadline) {
		if value, err := keyField.First().InputValue(); err == nil && ValidAPIKey(value) {
			l.log.Info("credential extracted", zap.String("project_id", projectID))
			return value, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return "", fmt.Errorf("%w: key never matched expected format", ErrStageTimeout)
}

// clickCreateCredentials finds the dropdown on the page or inside the
// console's render iframe.
func (l *LabFlow) clickCreateCredentials(page playwright.Page) bool {
	const dropdownSelector = `button[cfccalloutsteptarget="credential-create-button"]`

	for attempt := 0; attempt < 3; attempt++ {
		loc := page.Locator(dropdownSelector)
		if count, err := loc.Count(); err == nil && count > 0 {
			if err := loc.First().Click(); err == nil {
				return true
			}
		}
		for _, frame := range page.Frames() {
			frameLoc := frame.Locator(dropdownSelector)
			if count, err := frameLoc.Count(); err == nil && count > 0 {
				if err := frameLoc.First().Click(); err == nil {
					return true
				}
			}
		}
		time.Sleep(2 * time.Second)
	}
	return false
}

func (l *LabFlow) fail(result entities.RunResult, recorder *entities.StepRecorder, err error) entities.RunResult {
	l.log.Error("provisioning failed",
		zap.String("run_id", result.RunID),
		zap.String("stage", result.Payload["stage"]),
		zap.Error(err))
	result.State = entities.StateError
	result.Success = false
	result.Error = err.Error()
	result.Steps = recorder.Steps()
	return result
}
