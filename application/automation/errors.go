package automation

import "errors"

// Failure kinds surfaced in run results. Public entry points convert every
// internal failure into a RunResult; these sentinels let callers and tests
// tell the kinds apart with errors.Is.
var (
	// ErrBridgeStart - the worker context failed to start; nothing ran.
	ErrBridgeStart = errors.New("automation worker failed to start")

	// ErrBrowserInit - the browser could not be launched; the run aborts.
	ErrBrowserInit = errors.New("browser initialization failed")

	// ErrNavigation - navigation kept failing after retries.
	ErrNavigation = errors.New("navigation failed")

	// ErrCriticalField - a critical form field could not be filled.
	ErrCriticalField = errors.New("critical field fill failed")

	// ErrCaptchaUnsolved - the challenge stayed unsolved; the form was
	// never submitted.
	ErrCaptchaUnsolved = errors.New("captcha unsolved")

	// ErrSubmitControl - no submission control could be located.
	ErrSubmitControl = errors.New("submission control not found")

	// ErrLoginFailed - credentials were rejected after confirmation.
	ErrLoginFailed = errors.New("login failed")

	// ErrStageTimeout - a provisioning stage exceeded its bound.
	ErrStageTimeout = errors.New("provisioning stage timed out")

	// ErrConfirmationAmbiguous - no clear confirmation marker was found.
	ErrConfirmationAmbiguous = errors.New("confirmation outcome ambiguous")
)
