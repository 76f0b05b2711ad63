package captcha

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/entities"
)

func TestCleanTranscript(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain words", "seven three nine", "seven three nine"},
		{"mixed case", "Seven Three NINE", "seven three nine"},
		{"punctuation stripped", "seven, three. nine!", "seven three nine"},
		{"digits kept", "7 3 9", "7 3 9"},
		{"extra whitespace collapsed", "  seven   three\tnine ", "seven three nine"},
		{"empty input", "", ""},
		{"only punctuation", "?!...", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanTranscript(tt.raw))
		})
	}
}

func TestAudioAttemptsStopAtBound(t *testing.T) {
	solver := NewSolver(nil, config.TimeoutConfig{}, zap.NewNop())
	challenge := entities.CaptchaChallenge{Kind: entities.CaptchaAudio}

	attempts, reloads := 0, 0
	err := solver.runAudioAttempts(&challenge,
		func() error { attempts++; return errors.New("wrong answer") },
		func() bool { return false },
		func() { reloads++ })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsolved")
	assert.Equal(t, entities.MaxCaptchaAttempts, attempts, "attempts past the bound")
	assert.Equal(t, entities.MaxCaptchaAttempts, reloads)
	assert.True(t, challenge.Exhausted())
}

func TestAudioAttemptsStopOnceSolved(t *testing.T) {
	solver := NewSolver(nil, config.TimeoutConfig{}, zap.NewNop())
	challenge := entities.CaptchaChallenge{Kind: entities.CaptchaAudio}

	attempts, reloads := 0, 0
	err := solver.runAudioAttempts(&challenge,
		func() error { attempts++; return nil },
		func() bool { return true },
		func() { reloads++ })

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Zero(t, reloads, "no reload after a solved attempt")
}
