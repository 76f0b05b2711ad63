package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptchaChallengeAttemptBound(t *testing.T) {
	challenge := CaptchaChallenge{Kind: CaptchaAudio}

	assert.False(t, challenge.Exhausted())
	assert.True(t, challenge.NextAttempt())
	assert.True(t, challenge.NextAttempt())
	assert.True(t, challenge.Exhausted())
	assert.False(t, challenge.NextAttempt(), "no attempts past the bound")
	assert.Equal(t, MaxCaptchaAttempts, challenge.Attempts)
}
