package captcha

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"autocloudskill/config"
	"autocloudskill/domain/entities"
	"autocloudskill/domain/interfaces"
)

// Solver clears the page's challenge widget. It first tries the checkbox
// alone, then falls back to the audio challenge: download the clip,
// transcribe it, type the answer, verify. Attempts are bounded by
// entities.MaxCaptchaAttempts; an unsolved widget is reported as an error so
// the caller never submits the form past it.
type Solver struct {
	transcriber interfaces.Transcriber
	timeouts    config.TimeoutConfig
	log         *zap.Logger
	httpClient  *http.Client
}

// NewSolver - builds a solver around a speech-to-text engine
func NewSolver(transcriber interfaces.Transcriber, timeouts config.TimeoutConfig, log *zap.Logger) *Solver {
	return &Solver{
		transcriber: transcriber,
		timeouts:    timeouts,
		log:         log.Named("captcha"),
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Solve runs the full clearance state machine. Returns nil when no widget is
// present or the solved predicate holds afterwards.
func (s *Solver) Solve(ctx context.Context, page playwright.Page) error {
	if !Present(page) {
		s.log.Debug("no challenge widget on page")
		return nil
	}
	if Solved(page) {
		return nil
	}

	challenge := entities.CaptchaChallenge{Kind: entities.CaptchaCheckbox}

	if s.clickCheckbox(page) {
		if s.waitSolved(ctx, page, 5*time.Second) {
			s.log.Info("challenge cleared by checkbox alone")
			return nil
		}
	}

	challenge.Kind = entities.CaptchaAudio

	if s.transcriber == nil {
		// Manual/extension-assisted path: someone else clears the widget,
		// we only watch the predicate.
		s.log.Info("no transcriber configured, waiting for manual clearance")
		if s.waitSolved(ctx, page, s.timeouts.CaptchaSolve) {
			return nil
		}
		return fmt.Errorf("challenge not cleared within %s manual window", s.timeouts.CaptchaSolve)
	}

	return s.runAudioAttempts(&challenge,
		func() error { return s.solveAudio(ctx, page) },
		func() bool { return Solved(page) },
		func() { s.reloadChallenge(page) })
}

// runAudioAttempts drives bounded audio attempts, reloading the widget after
// each failed one. Returns nil as soon as the solved predicate holds.
func (s *Solver) runAudioAttempts(challenge *entities.CaptchaChallenge, attempt func() error, solved func() bool, reload func()) error {
	for challenge.NextAttempt() {
		s.log.Info("audio challenge attempt", zap.Int("attempt", challenge.Attempts))

		if err := attempt(); err != nil {
			s.log.Warn("audio attempt failed", zap.Int("attempt", challenge.Attempts), zap.Error(err))
		}
		if solved() {
			s.log.Info("audio challenge cleared", zap.Int("attempt", challenge.Attempts))
			return nil
		}
		reload()
	}

	return fmt.Errorf("challenge unsolved after %d audio attempts", entities.MaxCaptchaAttempts)
}

// clickCheckbox clicks the anchor checkbox. Returns false when the checkbox
// cannot be found or clicked.
func (s *Solver) clickCheckbox(page playwright.Page) bool {
	anchor := anchorFrame(page)
	if anchor == nil {
		return false
	}
	for _, selector := range []string{"#recaptcha-anchor", "div[role='checkbox'][aria-checked='false']"} {
		loc := anchor.Locator(selector)
		if count, err := loc.Count(); err != nil || count == 0 {
			continue
		}
		if err := loc.First().Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(float64(s.timeouts.ElementWait.Milliseconds())),
		}); err == nil {
			return true
		}
	}
	return false
}

// waitSolved polls the solved predicate with a fixed short sleep.
func (s *Solver) waitSolved(ctx context.Context, page playwright.Page, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if Solved(page) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(s.timeouts.CaptchaPoll):
		}
	}
	return Solved(page)
}

// solveAudio runs one audio attempt: switch to audio, fetch the clip,
// transcribe, answer, verify.
func (s *Solver) solveAudio(ctx context.Context, page playwright.Page) error {
	frame := challengeFrame(page)
	if frame == nil {
		return fmt.Errorf("challenge frame not found")
	}

	audioURL, audioBytes, err := s.openAudioChallenge(page, frame)
	if err != nil {
		return err
	}

	if audioBytes == nil {
		audioBytes, err = s.downloadAudio(ctx, page, audioURL)
		if err != nil {
			return err
		}
	}

	format := "wav"
	if strings.Contains(strings.ToLower(audioURL), ".mp3") {
		format = "mp3"
	}

	transcript, err := s.transcriber.Transcribe(ctx, audioBytes, format)
	if err != nil {
		return fmt.Errorf("transcription failed: %w", err)
	}
	answer := cleanTranscript(transcript)
	if answer == "" {
		return fmt.Errorf("transcription produced no usable text")
	}
	s.log.Debug("transcribed audio challenge", zap.Int("bytes", len(audioBytes)))

	if err := s.fillAnswer(frame, answer); err != nil {
		return err
	}
	return s.clickVerify(frame)
}

// openAudioChallenge clicks the audio button while listening for the audio
// payload response. Returns the resource URL and, when the network listener
// caught it, the raw bytes.
func (s *Solver) openAudioChallenge(page playwright.Page, frame playwright.Frame) (string, []byte, error) {
	isAudioResponse := func(resp playwright.Response) bool {
		url := strings.ToLower(resp.URL())
		contentType := resp.Headers()["content-type"]
		return (strings.Contains(url, "recaptcha") && strings.Contains(url, "audio")) ||
			strings.Contains(url, ".mp3") ||
			strings.Contains(contentType, "audio/")
	}

	resp, expectErr := page.ExpectResponse(isAudioResponse, func() error {
		return s.clickAudioButton(frame)
	}, playwright.PageExpectResponseOptions{
		Timeout: playwright.Float(6000),
	})
	if expectErr == nil && resp != nil {
		if body, err := resp.Body(); err == nil && len(body) > 0 {
			return resp.URL(), body, nil
		}
		return resp.URL(), nil, nil
	}

	// No intercepted response; fall back to the download link in the frame.
	for _, selector := range []string{
		"audio#audio-source[src]",
		"audio[src]",
		"a.rc-audiochallenge-tdownload-link",
		"a[href*='payload/audio.mp3']",
	} {
		loc := frame.Locator(selector)
		if count, err := loc.Count(); err != nil || count == 0 {
			continue
		}
		attr := "src"
		if strings.HasPrefix(selector, "a") {
			attr = "href"
		}
		if url, err := loc.First().GetAttribute(attr); err == nil && url != "" {
			return url, nil, nil
		}
	}

	return "", nil, fmt.Errorf("audio resource not found: %w", expectErr)
}

func (s *Solver) clickAudioButton(frame playwright.Frame) error {
	for _, selector := range []string{
		"button#recaptcha-audio-button",
		"button[title*='audio']",
		"button[aria-label*='audio']",
		".rc-button-audio",
	} {
		loc := frame.Locator(selector)
		if count, err := loc.Count(); err != nil || count == 0 {
			continue
		}
		if err := loc.First().Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(float64(s.timeouts.ElementWait.Milliseconds())),
		}); err == nil {
			return nil
		}
	}
	return fmt.Errorf("audio challenge button not found")
}

// downloadAudio fetches the clip, first through an in-page authenticated
// fetch, then a plain HTTP GET.
func (s *Solver) downloadAudio(ctx context.Context, page playwright.Page, audioURL string) ([]byte, error) {
	if audioURL == "" {
		return nil, fmt.Errorf("empty audio URL")
	}

	result, err := page.Evaluate(`async (url) => {
		const resp = await fetch(url, { credentials: 'include' });
		if (!resp.ok) return '';
		const buf = await resp.arrayBuffer();
		const bytes = new Uint8Array(buf);
		let binary = '';
		for (let i = 0; i < bytes.length; i++) binary += String.fromCharCode(bytes[i]);
		return btoa(binary);
	}`, audioURL)
	if err == nil {
		if encoded, ok := result.(string); ok && encoded != "" {
			if decoded, err := base64.StdEncoding.DecodeString(encoded); err == nil && len(decoded) > 0 {
				return decoded, nil
			}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build audio request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("audio download returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio body: %w", err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("audio download returned empty body")
	}
	return body, nil
}

func (s *Solver) fillAnswer(frame playwright.Frame, answer string) error {
	for _, selector := range []string{
		"input#audio-response",
		"input[name='audio-response']",
		".rc-audiochallenge-response-field",
	} {
		loc := frame.Locator(selector)
		if count, err := loc.Count(); err != nil || count == 0 {
			continue
		}
		if err := loc.First().Fill(answer); err == nil {
			return nil
		}
	}
	return fmt.Errorf("audio response field not found")
}

func (s *Solver) clickVerify(frame playwright.Frame) error {
	for _, selector := range []string{
		"button#recaptcha-verify-button",
		".rc-audiochallenge-verify-button",
		"button[type='submit']",
	} {
		loc := frame.Locator(selector)
		if count, err := loc.Count(); err != nil || count == 0 {
			continue
		}
		if err := loc.First().Click(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("verify button not found")
}

func (s *Solver) reloadChallenge(page playwright.Page) {
	frame := challengeFrame(page)
	if frame == nil {
		return
	}
	for _, selector := range []string{
		"button#recaptcha-reload-button",
		".rc-button-reload",
		"button[aria-label*='reload']",
	} {
		loc := frame.Locator(selector)
		if count, err := loc.Count(); err != nil || count == 0 {
			continue
		}
		if err := loc.First().Click(); err == nil {
			return
		}
	}
}

// cleanTranscript normalizes engine output into a typeable answer: lowered,
// stripped of punctuation, single-spaced.
func cleanTranscript(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
