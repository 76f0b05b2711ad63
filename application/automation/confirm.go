package automation

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/entities"
	"autocloudskill/infrastructure/browser"
)

// confirmationMarkers are the phrases the site shows right after a
// successful e-mail confirmation.
var confirmationMarkers = []string{
	"successfully confirmed",
	"your account was successfully confirmed",
	"your account has been confirmed",
	"email address has been successfully confirmed",
}

// alertContainers are where the site surfaces flash messages, success and
// error alike.
var alertContainers = []string{
	"div[role='alert']",
	".alert.alert-success",
	".alert",
	".errors",
	".error",
	".notice",
	".flash--success",
	"#notice",
}

// loginErrorMarkers indicate rejected credentials. An error marker on the
// current page always beats a success phrase left over from the previous
// page.
var loginErrorMarkers = []string{
	"invalid",
	"incorrect",
	"does not match",
	"doesn't match",
	"mismatch",
	"not found",
}

const maxNavigateAttempts = 3

// hasConfirmationMarker reports whether the text carries a confirmation
// success phrase.
func hasConfirmationMarker(text string) bool {
	lowered := strings.ToLower(text)
	for _, marker := range confirmationMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// classifyLogin decides the post-submit outcome from the page URL and the
// alert texts collected on that page only. signInPath is the configured
// sign-in form's URL path; landing back on it means the login did not take.
func classifyLogin(currentURL string, alertTexts []string, signInPath string) (loggedIn bool, reason string) {
	for _, text := range alertTexts {
		lowered := strings.ToLower(text)
		for _, marker := range loginErrorMarkers {
			if strings.Contains(lowered, marker) {
				return false, strings.TrimSpace(text)
			}
		}
	}
	if signInPath != "" && strings.Contains(currentURL, signInPath) {
		return false, "still on sign-in page"
	}
	return true, ""
}

// signInPath extracts the path component of the configured sign-in URL.
func signInPath(signInURL string) string {
	parsed, err := url.Parse(signInURL)
	if err != nil {
		return ""
	}
	return parsed.Path
}

// ConfirmFlow opens a confirmation link and, when a login form follows,
// signs the freshly confirmed account in.
type ConfirmFlow struct {
	cfg      *config.Config
	session  *browser.Session
	resolver *browser.Resolver
	log      *zap.Logger
}

// NewConfirmFlow - builds the confirmation sub-flow
func NewConfirmFlow(cfg *config.Config, session *browser.Session, resolver *browser.Resolver, log *zap.Logger) *ConfirmFlow {
	return &ConfirmFlow{
		cfg:      cfg,
		session:  session,
		resolver: resolver,
		log:      log.Named("confirm"),
	}
}

// Run navigates to the link and reports confirmed and logged_in
// independently in the result payload. An ambiguous confirmation is not a
// failure; rejected credentials are.
func (c *ConfirmFlow) Run(ctx context.Context, link, email, password string) entities.RunResult {
	result := entities.RunResult{
		RunID: uuid.NewString(),
		State: entities.StateConfirmingEmail,
	}
	recorder := &entities.StepRecorder{}
	result.WithPayload("confirmed", "false").WithPayload("logged_in", "false")

	if err := c.session.Start(ctx); err != nil {
		return c.fail(result, recorder, fmt.Errorf("%w: %v", ErrBrowserInit, err))
	}

	if err := c.navigateWithRetry(ctx, link); err != nil {
		return c.fail(result, recorder, err)
	}
	recorder.Record("open_link")

	page, err := c.session.ActivePage()
	if err != nil {
		return c.fail(result, recorder, err)
	}

	// Success markers are only trusted immediately after this navigation;
	// later pages may carry the same banner text without meaning anything.
	confirmed := c.pageShowsConfirmation(page)
	if confirmed {
		result.WithPayload("confirmed", "true")
		recorder.Record("confirmed")
	} else {
		recorder.RecordDetail("confirmed", ErrConfirmationAmbiguous.Error(), false)
	}

	if password == "" {
		result.State = entities.StateSuccess
		result.Success = true
		result.Steps = recorder.Steps()
		result.WithPayload("final_url", page.URL())
		return result
	}

	hasPassword := c.passwordFieldPresent(page)
	if !hasPassword && confirmed {
		if err := c.navigateWithRetry(ctx, c.cfg.Target.SignInURL); err != nil {
			return c.fail(result, recorder, err)
		}
		hasPassword = c.waitForPasswordField(page)
	}

	if hasPassword {
		loggedIn, reason, err := c.login(page, email, password)
		if err != nil {
			return c.fail(result, recorder, err)
		}
		if !loggedIn {
			recorder.RecordDetail("login", reason, false)
			return c.fail(result, recorder, fmt.Errorf("%w: %s", ErrLoginFailed, reason))
		}
		result.WithPayload("logged_in", "true")
		recorder.Record("login")
	}

	if err := c.session.SaveState(); err != nil {
		c.log.Warn("failed to persist session after confirmation", zap.Error(err))
	}

	result.State = entities.StateSuccess
	result.Success = true
	result.Steps = recorder.Steps()
	result.WithPayload("final_url", page.URL())
	return result
}

func (c *ConfirmFlow) navigateWithRetry(ctx context.Context, link string) error {
	var lastErr error
	backoff := time.Second
	for attempt := 1; attempt <= maxNavigateAttempts; attempt++ {
		if lastErr = c.session.Navigate(ctx, link); lastErr == nil {
			return nil
		}
		c.log.Warn("navigation attempt failed",
			zap.Int("attempt", attempt),
			zap.String("url", link),
			zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", ErrNavigation, lastErr)
}

// pageShowsConfirmation checks the alert containers first, then falls back
// to the whole body text.
func (c *ConfirmFlow) pageShowsConfirmation(page playwright.Page) bool {
	for _, text := range c.collectAlertTexts(page) {
		if hasConfirmationMarker(text) {
			return true
		}
	}
	if body, err := page.Locator("body").TextContent(); err == nil && hasConfirmationMarker(body) {
		return true
	}
	return false
}

func (c *ConfirmFlow) collectAlertTexts(page playwright.Page) []string {
	var texts []string
	for _, selector := range alertContainers {
		loc := page.Locator(selector)
		count, err := loc.Count()
		if err != nil {
			continue
		}
		for i := 0; i < count; i++ {
			if text, err := loc.Nth(i).TextContent(); err == nil && strings.TrimSpace(text) != "" {
				texts = append(texts, text)
			}
		}
	}
	return texts
}

func (c *ConfirmFlow) passwordFieldPresent(page playwright.Page) bool {
	count, err := page.Locator("input[type='password']").Count()
	return err == nil && count > 0
}

func (c *ConfirmFlow) waitForPasswordField(page playwright.Page) bool {
	err := page.Locator("input[type='password']").First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(c.cfg.Timeouts.FormWait.Milliseconds())),
	})
	return err == nil
}

func (c *ConfirmFlow) login(page playwright.Page, email, password string) (bool, string, error) {
	if email != "" {
		emailField := entities.FieldSpec{
			Name:  "email",
			Label: "Email",
			Selectors: []string{
				"input[name='user[email]']",
				"input[type='email']",
				"input[name='email']",
			},
			Critical: false,
		}
		if err := c.resolver.FillField(page, emailField, email); err != nil {
			c.log.Debug("email field not refilled, likely prefilled", zap.Error(err))
		}
	}

	passwordLoc := page.Locator("input[type='password']").First()
	if err := passwordLoc.Fill(password); err != nil {
		return false, "", fmt.Errorf("failed to fill password: %w", err)
	}

	submitted := false
	for _, selector := range []string{"button[type='submit']", "input[type='submit']", "button:has-text('Sign in')"} {
		loc := page.Locator(selector)
		if count, err := loc.Count(); err != nil || count == 0 {
			continue
		}
		if err := loc.First().Click(); err == nil {
			submitted = true
			break
		}
	}
	if !submitted {
		// Enter-key fallback when no submit control matched.
		if err := passwordLoc.Press("Enter"); err != nil {
			return false, "", fmt.Errorf("%w: no submit control and Enter failed: %v", ErrSubmitControl, err)
		}
	}

	_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(c.cfg.Timeouts.Navigation.Milliseconds())),
	})

	loggedIn, reason := classifyLogin(page.URL(), c.collectAlertTexts(page), signInPath(c.cfg.Target.SignInURL))
	return loggedIn, reason, nil
}

func (c *ConfirmFlow) fail(result entities.RunResult, recorder *entities.StepRecorder, err error) entities.RunResult {
	c.log.Error("confirmation flow failed", zap.String("run_id", result.RunID), zap.Error(err))
	result.State = entities.StateError
	result.Success = false
	result.Error = err.Error()
	result.Steps = recorder.Steps()
	return result
}
