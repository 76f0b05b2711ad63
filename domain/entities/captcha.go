package entities

// CaptchaKind distinguishes how a challenge was (or must be) cleared.
type CaptchaKind string

const (
	CaptchaNone     CaptchaKind = "none"
	CaptchaCheckbox CaptchaKind = "checkbox"
	CaptchaAudio    CaptchaKind = "audio"
)

// MaxCaptchaAttempts bounds audio-challenge solve attempts per challenge.
const MaxCaptchaAttempts = 2

// CaptchaChallenge tracks one detected challenge through its lifecycle.
// It is created on detection and discarded once solved or exhausted.
type CaptchaChallenge struct {
	Kind     CaptchaKind `json:"kind"`
	Solved   bool        `json:"solved"`
	Attempts int         `json:"attempts"`
}

// Exhausted - reports whether no further solve attempts are allowed
func (c *CaptchaChallenge) Exhausted() bool {
	return c.Attempts >= MaxCaptchaAttempts
}

// NextAttempt - consumes one attempt; returns false when already exhausted
func (c *CaptchaChallenge) NextAttempt() bool {
	if c.Exhausted() {
		return false
	}
	c.Attempts++
	return true
}
