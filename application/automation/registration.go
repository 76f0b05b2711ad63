package automation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"autocloudskill/domain/entities"
)

// flowDriver is the browser-facing side of the registration machine. The
// machine sequences these calls; the production implementation drives the
// real page, tests substitute a fake.
type flowDriver interface {
	// Init brings up the browser session.
	Init(ctx context.Context) error
	// OpenRegistrationPage navigates to the sign-up form and waits for it.
	OpenRegistrationPage(ctx context.Context) error
	// FillForm writes the profile into the form, recording each field-fill
	// strategy attempt for diagnostics.
	FillForm(ctx context.Context, profile entities.ProfileRecord, rec *entities.StepRecorder) error
	// ClearCaptcha clears any challenge. present is false when the page has
	// no challenge widget at all.
	ClearCaptcha(ctx context.Context) (present bool, err error)
	// CaptchaCleared re-checks the solved predicate right before submit.
	CaptchaCleared(ctx context.Context) bool
	// Submit clicks the primary action control and waits out the post-click
	// network settling.
	Submit(ctx context.Context) error
	// Teardown closes the session. keep leaves it open for a later
	// confirmation call.
	Teardown(ctx context.Context, keep bool) error
}

// RegistrationMachine drives one registration run through its states:
// Initializing, Navigating, FillingForm, SolvingCaptcha, Submitting,
// WaitingEmail, Success. Any step failure moves the run to Error with the
// partial step list preserved.
type RegistrationMachine struct {
	driver   flowDriver
	keepOpen bool
	log      *zap.Logger
}

// NewRegistrationMachine - builds the machine around a flow driver
func NewRegistrationMachine(driver flowDriver, keepOpen bool, log *zap.Logger) *RegistrationMachine {
	return &RegistrationMachine{
		driver:   driver,
		keepOpen: keepOpen,
		log:      log.Named("registration"),
	}
}

// Run executes the whole registration flow and always returns a result.
func (m *RegistrationMachine) Run(ctx context.Context, profile entities.ProfileRecord) entities.RunResult {
	result := entities.RunResult{
		RunID: uuid.NewString(),
		State: entities.StateIdle,
	}
	recorder := &entities.StepRecorder{}

	if err := profile.Validate(); err != nil {
		// Invalid input fails before any browser work starts.
		return m.fail(result, recorder, err)
	}

	advance := func(next entities.AutomationState) error {
		if !result.State.CanTransition(next) {
			return fmt.Errorf("illegal state transition %s -> %s", result.State, next)
		}
		result.State = next
		m.log.Info("state", zap.String("run_id", result.RunID), zap.String("state", string(next)))
		return nil
	}

	if err := advance(entities.StateInitializing); err != nil {
		return m.fail(result, recorder, err)
	}
	if err := m.driver.Init(ctx); err != nil {
		return m.fail(result, recorder, fmt.Errorf("%w: %v", ErrBrowserInit, err))
	}
	recorder.Record("init")

	if err := advance(entities.StateNavigating); err != nil {
		return m.fail(result, recorder, err)
	}
	if err := m.driver.OpenRegistrationPage(ctx); err != nil {
		return m.fail(result, recorder, fmt.Errorf("%w: %v", ErrNavigation, err))
	}
	recorder.Record("navigate")

	if err := advance(entities.StateFillingForm); err != nil {
		return m.fail(result, recorder, err)
	}
	if err := m.driver.FillForm(ctx, profile, recorder); err != nil {
		return m.fail(result, recorder, fmt.Errorf("%w: %v", ErrCriticalField, err))
	}
	recorder.Record("fill")

	if err := advance(entities.StateSolvingCaptcha); err != nil {
		return m.fail(result, recorder, err)
	}
	present, err := m.driver.ClearCaptcha(ctx)
	if err != nil {
		return m.fail(result, recorder, fmt.Errorf("%w: %v", ErrCaptchaUnsolved, err))
	}
	if present {
		recorder.Record("captcha")
		// The solved predicate gates submission; a cleared-looking widget
		// that reports unsolved still stops the run here.
		if !m.driver.CaptchaCleared(ctx) {
			return m.fail(result, recorder, ErrCaptchaUnsolved)
		}
	}

	if err := advance(entities.StateSubmitting); err != nil {
		return m.fail(result, recorder, err)
	}
	if err := m.driver.Submit(ctx); err != nil {
		return m.fail(result, recorder, fmt.Errorf("%w: %v", ErrSubmitControl, err))
	}
	recorder.Record("submit")

	// Mailbox polling is the caller's job; the run is done from the
	// browser's point of view.
	if err := advance(entities.StateWaitingEmail); err != nil {
		return m.fail(result, recorder, err)
	}
	if err := advance(entities.StateSuccess); err != nil {
		return m.fail(result, recorder, err)
	}

	if m.keepOpen {
		m.log.Info("leaving session open for confirmation", zap.String("run_id", result.RunID))
		if err := m.driver.Teardown(ctx, true); err != nil {
			m.log.Warn("state save failed on keep-open", zap.Error(err))
		}
	} else if err := m.driver.Teardown(ctx, false); err != nil {
		m.log.Warn("teardown failed after successful run", zap.Error(err))
	}

	result.Success = true
	result.Steps = recorder.Steps()
	result.FillAttempts = recorder.Attempts()
	return result
}

func (m *RegistrationMachine) fail(result entities.RunResult, recorder *entities.StepRecorder, err error) entities.RunResult {
	m.log.Error("run failed",
		zap.String("run_id", result.RunID),
		zap.String("state", string(result.State)),
		zap.Error(err))

	result.State = entities.StateError
	result.Success = false
	result.Error = err.Error()
	result.Steps = recorder.Steps()
	result.FillAttempts = recorder.Attempts()

	if !m.keepOpen {
		if terr := m.driver.Teardown(context.Background(), false); terr != nil {
			m.log.Warn("teardown failed after error", zap.Error(terr))
		}
	}
	return result
}
