package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateTransitionsAreForwardOnly(t *testing.T) {
	assert.True(t, StateIdle.CanTransition(StateInitializing))
	assert.True(t, StateInitializing.CanTransition(StateNavigating))
	assert.True(t, StateNavigating.CanTransition(StateSubmitting), "skipping ahead is allowed")
	assert.True(t, StateSubmitting.CanTransition(StateSuccess))

	assert.False(t, StateSubmitting.CanTransition(StateNavigating), "no going back")
	assert.False(t, StateSuccess.CanTransition(StateIdle))
	assert.False(t, StateIdle.CanTransition(StateIdle), "no self transition")
}

func TestErrorReachableFromAnywhereAndTerminal(t *testing.T) {
	for _, state := range []AutomationState{
		StateIdle, StateInitializing, StateNavigating, StateFillingForm,
		StateSolvingCaptcha, StateSubmitting, StateWaitingEmail,
		StateConfirmingEmail, StateProvisioning, StateSuccess,
	} {
		assert.True(t, state.CanTransition(StateError), "error must be reachable from %s", state)
	}

	assert.False(t, StateError.CanTransition(StateIdle))
	assert.False(t, StateError.CanTransition(StateSuccess))
	assert.False(t, StateError.CanTransition(StateError))
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateSuccess.Terminal())
	assert.True(t, StateError.Terminal())
	assert.False(t, StateWaitingEmail.Terminal())
	assert.False(t, StateIdle.Terminal())
}
