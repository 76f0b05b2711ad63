package captcha

import (
	"strings"

	"github.com/playwright-community/playwright-go"
)

// tokenScript reads the hidden response token the widget fills on success.
const tokenScript = `() => {
	try {
		const t = document.querySelector('textarea#g-recaptcha-response, textarea[name="g-recaptcha-response"]');
		return t && t.value ? t.value : '';
	} catch (e) { return ''; }
}`

// anchorFrame and challengeFrame locate the two widget frames. The anchor
// frame holds the checkbox; the challenge frame renders the audio/image UI.
func anchorFrame(page playwright.Page) playwright.Frame {
	return findFrame(page, "api2/anchor", "enterprise/anchor")
}

func challengeFrame(page playwright.Page) playwright.Frame {
	return findFrame(page, "api2/bframe", "enterprise/bframe")
}

func findFrame(page playwright.Page, markers ...string) playwright.Frame {
	for _, frame := range page.Frames() {
		url := strings.ToLower(frame.URL())
		for _, marker := range markers {
			if strings.Contains(url, marker) {
				return frame
			}
		}
	}
	return nil
}

// Present reports whether a challenge widget exists on the page at all.
func Present(page playwright.Page) bool {
	if anchorFrame(page) != nil {
		return true
	}
	for _, selector := range []string{
		"iframe[title*='reCAPTCHA']",
		"iframe[src*='recaptcha']",
		".g-recaptcha",
		"[data-sitekey]",
	} {
		if count, err := page.Locator(selector).Count(); err == nil && count > 0 {
			return true
		}
	}
	return false
}

// Solved is the gate the submit step checks. True when the response token is
// non-empty or the anchor checkbox reports checked.
func Solved(page playwright.Page) bool {
	if value, err := page.Evaluate(tokenScript); err == nil {
		if token, ok := value.(string); ok && strings.TrimSpace(token) != "" {
			return true
		}
	}

	for _, frame := range page.Frames() {
		if !strings.Contains(frame.URL(), "recaptcha") {
			continue
		}
		checked := frame.Locator(
			"#recaptcha-anchor[aria-checked='true'], span.recaptcha-checkbox-checked[role='checkbox']")
		if count, err := checked.Count(); err == nil && count > 0 {
			return true
		}
	}
	return false
}
