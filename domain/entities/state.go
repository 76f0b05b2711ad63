package entities

// AutomationState represents the current phase of an in-flight run.
type AutomationState string

const (
	StateIdle            AutomationState = "idle"
	StateInitializing    AutomationState = "initializing"
	StateNavigating      AutomationState = "navigating"
	StateFillingForm     AutomationState = "filling_form"
	StateSolvingCaptcha  AutomationState = "solving_captcha"
	StateSubmitting      AutomationState = "submitting"
	StateWaitingEmail    AutomationState = "waiting_email"
	StateConfirmingEmail AutomationState = "confirming_email"
	StateProvisioning    AutomationState = "provisioning"
	StateSuccess         AutomationState = "success"
	StateError           AutomationState = "error"
)

// stateOrder encodes the forward-only progression. Error is reachable from
// anywhere and terminal, so it is handled separately in CanTransition.
var stateOrder = map[AutomationState]int{
	StateIdle:            0,
	StateInitializing:    1,
	StateNavigating:      2,
	StateFillingForm:     3,
	StateSolvingCaptcha:  4,
	StateSubmitting:      5,
	StateWaitingEmail:    6,
	StateConfirmingEmail: 7,
	StateProvisioning:    8,
	StateSuccess:         9,
}

// CanTransition - reports whether moving from s to next is a legal transition
func (s AutomationState) CanTransition(next AutomationState) bool {
	if s == StateError {
		return false
	}
	if next == StateError {
		return true
	}
	from, okFrom := stateOrder[s]
	to, okTo := stateOrder[next]
	if !okFrom || !okTo {
		return false
	}
	return to > from
}

// Terminal - reports whether the run is finished in this state
func (s AutomationState) Terminal() bool {
	return s == StateSuccess || s == StateError
}
