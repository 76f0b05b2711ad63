package automation

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/entities"
	"autocloudskill/infrastructure/browser"
	"autocloudskill/infrastructure/captcha"
)

// registrationFields describes the sign-up form. Selector lists cover the
// site's canonical names plus common markup variants; new variants are
// additive.
var registrationFields = []entities.FieldSpec{
	{
		Name:        "first_name",
		Label:       "First name",
		Placeholder: "First name",
		Selectors: []string{
			"input[name='user[first_name]']",
			"input[name='first_name']",
			"input[name='firstName']",
			"input[id*='first']",
		},
		Critical: true,
	},
	{
		Name:        "last_name",
		Label:       "Last name",
		Placeholder: "Last name",
		Selectors: []string{
			"input[name='user[last_name]']",
			"input[name='last_name']",
			"input[name='lastName']",
			"input[id*='last']",
		},
		Critical: true,
	},
	{
		Name:        "email",
		Label:       "Email",
		Placeholder: "Email",
		Selectors: []string{
			"input[name='user[email]']",
			"input[name='email']",
			"input[type='email']",
			"input[id*='email']",
		},
		Critical: true,
	},
	{
		Name:        "company",
		Label:       "Company",
		Placeholder: "Company",
		Selectors: []string{
			"input[name='user[company_name]']",
			"input[name='company_name']",
			"input[name='company']",
			"input[id*='company']",
		},
		Critical: false,
	},
	{
		Name:        "password",
		Label:       "Password",
		Placeholder: "Password",
		Selectors: []string{
			"input[name='user[password]']",
			"input[name='password']",
			"input[type='password']:first-of-type",
			"input[id*='password']:not([id*='confirm'])",
		},
		Critical: true,
	},
	{
		Name:        "password_confirmation",
		Label:       "Password confirmation",
		Placeholder: "Password confirmation",
		Selectors: []string{
			"input[name='user[password_confirmation]']",
			"input[name='password_confirmation']",
			"input[name='confirmPassword']",
			"input[type='password']:last-of-type",
			"input[id*='confirm']",
		},
		Critical: true,
	},
}

// submitSelectors locate the form's primary action control, tried in order.
var submitSelectors = []string{
	"button[type='submit']",
	"input[type='submit']",
	"button:has-text('Create account')",
	"button:has-text('Join')",
	"button:has-text('Sign up')",
}

// browserFlow is the production flowDriver: it drives the real page through
// the session, resolver and captcha solver.
type browserFlow struct {
	cfg      *config.Config
	session  *browser.Session
	resolver *browser.Resolver
	solver   *captcha.Solver
	log      *zap.Logger
}

func newBrowserFlow(cfg *config.Config, session *browser.Session, resolver *browser.Resolver, solver *captcha.Solver, log *zap.Logger) *browserFlow {
	return &browserFlow{
		cfg:      cfg,
		session:  session,
		resolver: resolver,
		solver:   solver,
		log:      log.Named("flow"),
	}
}

func (f *browserFlow) Init(ctx context.Context) error {
	return f.session.Start(ctx)
}

func (f *browserFlow) OpenRegistrationPage(ctx context.Context) error {
	if err := f.session.Navigate(ctx, f.cfg.Target.RegisterURL); err != nil {
		return err
	}
	page, err := f.session.ActivePage()
	if err != nil {
		return err
	}
	// The form renders asynchronously; wait for the first critical field.
	return page.Locator("input[name='user[first_name]'], input[name='first_name'], form input[type='text']").
		First().
		WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(float64(f.cfg.Timeouts.FormWait.Milliseconds())),
		})
}

func (f *browserFlow) FillForm(ctx context.Context, profile entities.ProfileRecord, rec *entities.StepRecorder) error {
	page, err := f.session.ActivePage()
	if err != nil {
		return err
	}

	values := map[string]string{
		"first_name":            profile.FirstName,
		"last_name":             profile.LastName,
		"email":                 profile.Email,
		"password":              profile.Password,
		"password_confirmation": profile.Password,
	}
	if profile.Company != "" {
		values["company"] = profile.Company
	}

	if err := f.resolver.FillForm(page, registrationFields, values, rec); err != nil {
		return err
	}

	f.fillBirthDate(page)
	f.setNewsletterOptIn(page)
	return nil
}

// fillBirthDate picks a random adult birth date when the form asks for one.
// The field is auxiliary; failures are logged and ignored.
func (f *browserFlow) fillBirthDate(page playwright.Page) {
	selects := map[string]string{
		"select[name*='birth'][name*='2i'], select[id*='month']": fmt.Sprintf("%d", 1+rand.Intn(12)),
		"select[name*='birth'][name*='3i'], select[id*='day']":   fmt.Sprintf("%d", 1+rand.Intn(28)),
		"select[name*='birth'][name*='1i'], select[id*='year']":  fmt.Sprintf("%d", 1975+rand.Intn(25)),
	}
	for selector, value := range selects {
		loc := page.Locator(selector)
		if count, err := loc.Count(); err != nil || count == 0 {
			continue
		}
		if _, err := loc.First().SelectOption(playwright.SelectOptionValues{
			Values: &[]string{value},
		}); err != nil {
			f.log.Debug("birth date select skipped", zap.String("selector", selector), zap.Error(err))
		}
	}
}

func (f *browserFlow) setNewsletterOptIn(page playwright.Page) {
	loc := page.Locator("input[type='checkbox'][name*='newsletter'], input[type='checkbox'][id*='newsletter']")
	if count, err := loc.Count(); err != nil || count == 0 {
		return
	}
	if err := loc.First().Check(); err != nil {
		f.log.Debug("newsletter opt-in skipped", zap.Error(err))
	}
}

func (f *browserFlow) ClearCaptcha(ctx context.Context) (bool, error) {
	page, err := f.session.ActivePage()
	if err != nil {
		return false, err
	}
	if !captcha.Present(page) {
		return false, nil
	}
	if err := f.solver.Solve(ctx, page); err != nil {
		return true, err
	}
	return true, nil
}

func (f *browserFlow) CaptchaCleared(ctx context.Context) bool {
	page, err := f.session.ActivePage()
	if err != nil {
		return false
	}
	return captcha.Solved(page)
}

func (f *browserFlow) Submit(ctx context.Context) error {
	page, err := f.session.ActivePage()
	if err != nil {
		return err
	}

	for _, selector := range submitSelectors {
		loc := page.Locator(selector)
		if count, err := loc.Count(); err != nil || count == 0 {
			continue
		}
		if err := loc.First().Click(); err != nil {
			f.log.Debug("submit control click failed", zap.String("selector", selector), zap.Error(err))
			continue
		}
		// Post-submit settling is best effort; the site sometimes keeps a
		// request open well past the redirect.
		_ = page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateNetworkidle,
			Timeout: playwright.Float(float64(f.cfg.Timeouts.Navigation.Milliseconds())),
		})
		return nil
	}
	return fmt.Errorf("no submission control matched")
}

func (f *browserFlow) Teardown(ctx context.Context, keep bool) error {
	if keep {
		return f.session.SaveState()
	}
	return f.session.Close()
}
