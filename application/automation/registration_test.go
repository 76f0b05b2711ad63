package automation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autocloudskill/domain/entities"
)

type fakeDriver struct {
	calls          []string
	initErr        error
	navigateErr    error
	fillErr        error
	captchaPresent bool
	captchaErr     error
	captchaCleared bool
	submitErr      error
	tornDown       bool
	stateSaved     bool
}

func (f *fakeDriver) Init(ctx context.Context) error {
	f.calls = append(f.calls, "init")
	return f.initErr
}

func (f *fakeDriver) OpenRegistrationPage(ctx context.Context) error {
	f.calls = append(f.calls, "navigate")
	return f.navigateErr
}

func (f *fakeDriver) FillForm(ctx context.Context, profile entities.ProfileRecord, rec *entities.StepRecorder) error {
	f.calls = append(f.calls, "fill")
	if rec != nil {
		rec.RecordAttempt(entities.FillAttempt{Field: "email", Strategy: "label", OK: f.fillErr == nil})
	}
	return f.fillErr
}

func (f *fakeDriver) ClearCaptcha(ctx context.Context) (bool, error) {
	f.calls = append(f.calls, "captcha")
	return f.captchaPresent, f.captchaErr
}

func (f *fakeDriver) CaptchaCleared(ctx context.Context) bool {
	return f.captchaCleared
}

func (f *fakeDriver) Submit(ctx context.Context) error {
	f.calls = append(f.calls, "submit")
	return f.submitErr
}

func (f *fakeDriver) Teardown(ctx context.Context, keep bool) error {
	if keep {
		f.stateSaved = true
	} else {
		f.tornDown = true
	}
	return nil
}

func validProfile() entities.ProfileRecord {
	return entities.ProfileRecord{
		FirstName: "Ann",
		LastName:  "Lee",
		Email:     "a@b.test",
		Password:  "Secret123!",
	}
}

func TestRegistrationHappyPathWithoutCaptcha(t *testing.T) {
	driver := &fakeDriver{captchaPresent: false}
	machine := NewRegistrationMachine(driver, false, zap.NewNop())

	result := machine.Run(context.Background(), validProfile())

	require.True(t, result.Success)
	assert.Equal(t, entities.StateSuccess, result.State)
	assert.Equal(t, []string{"init", "navigate", "fill", "submit"}, result.StepNames())
	assert.True(t, driver.tornDown)
	assert.NotEmpty(t, result.RunID)
}

func TestRegistrationCarriesFillAttemptDiagnostics(t *testing.T) {
	driver := &fakeDriver{}
	machine := NewRegistrationMachine(driver, false, zap.NewNop())

	result := machine.Run(context.Background(), validProfile())

	require.True(t, result.Success)
	require.Len(t, result.FillAttempts, 1)
	assert.Equal(t, entities.FillAttempt{Field: "email", Strategy: "label", OK: true}, result.FillAttempts[0])
}

func TestRegistrationRecordsCaptchaStepWhenPresent(t *testing.T) {
	driver := &fakeDriver{captchaPresent: true, captchaCleared: true}
	machine := NewRegistrationMachine(driver, false, zap.NewNop())

	result := machine.Run(context.Background(), validProfile())

	require.True(t, result.Success)
	assert.Equal(t, []string{"init", "navigate", "fill", "captcha", "submit"}, result.StepNames())
}

func TestRegistrationInvalidProfileFailsBeforeNavigation(t *testing.T) {
	driver := &fakeDriver{}
	machine := NewRegistrationMachine(driver, false, zap.NewNop())

	result := machine.Run(context.Background(), entities.ProfileRecord{
		FirstName: "Ann",
		// missing last name, email, password
	})

	assert.False(t, result.Success)
	assert.Equal(t, entities.StateError, result.State)
	assert.Empty(t, result.Steps)
	assert.NotContains(t, driver.calls, "navigate")
}

func TestRegistrationNeverSubmitsUnsolvedCaptcha(t *testing.T) {
	driver := &fakeDriver{captchaPresent: true, captchaCleared: false}
	machine := NewRegistrationMachine(driver, false, zap.NewNop())

	result := machine.Run(context.Background(), validProfile())

	assert.False(t, result.Success)
	assert.Equal(t, entities.StateError, result.State)
	assert.Contains(t, result.Error, ErrCaptchaUnsolved.Error())
	assert.NotContains(t, driver.calls, "submit")
}

func TestRegistrationCaptchaSolverFailureStopsRun(t *testing.T) {
	driver := &fakeDriver{captchaPresent: true, captchaErr: errors.New("attempts exhausted")}
	machine := NewRegistrationMachine(driver, false, zap.NewNop())

	result := machine.Run(context.Background(), validProfile())

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, ErrCaptchaUnsolved.Error())
	assert.NotContains(t, driver.calls, "submit")
}

func TestRegistrationStepFailurePreservesPartialSteps(t *testing.T) {
	driver := &fakeDriver{fillErr: errors.New("email field missing")}
	machine := NewRegistrationMachine(driver, false, zap.NewNop())

	result := machine.Run(context.Background(), validProfile())

	assert.False(t, result.Success)
	assert.Equal(t, []string{"init", "navigate"}, result.StepNames())
	assert.Contains(t, result.Error, ErrCriticalField.Error())
	assert.True(t, driver.tornDown)
}

func TestRegistrationKeepOpenSkipsTeardown(t *testing.T) {
	driver := &fakeDriver{}
	machine := NewRegistrationMachine(driver, true, zap.NewNop())

	result := machine.Run(context.Background(), validProfile())

	require.True(t, result.Success)
	assert.False(t, driver.tornDown)
	assert.True(t, driver.stateSaved)
}
