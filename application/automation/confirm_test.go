package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasConfirmationMarker(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"exact phrase", "Your account was successfully confirmed.", true},
		{"alternate phrase", "Email address has been successfully confirmed", true},
		{"case insensitive", "YOUR ACCOUNT HAS BEEN CONFIRMED", true},
		{"embedded in body", "Welcome! Your account was successfully confirmed. Continue below.", true},
		{"unrelated text", "Please sign in to continue", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hasConfirmationMarker(tt.text))
		})
	}
}

func TestClassifyLogin(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		alerts     []string
		signInPath string
		wantLogged bool
		wantReason string
	}{
		{
			"clean redirect",
			"https://www.cloudskillsboost.google/dashboard",
			nil, "/users/sign_in",
			true, "",
		},
		{
			"error marker beats redirect",
			"https://www.cloudskillsboost.google/dashboard",
			[]string{"Invalid email or password"},
			"/users/sign_in",
			false, "Invalid email or password",
		},
		{
			"stale success banner does not mask error",
			"https://www.cloudskillsboost.google/users/sign_in",
			[]string{"Your account was successfully confirmed", "Incorrect password"},
			"/users/sign_in",
			false, "Incorrect password",
		},
		{
			"stuck on sign-in without error text",
			"https://www.cloudskillsboost.google/users/sign_in",
			nil, "/users/sign_in",
			false, "still on sign-in page",
		},
		{
			"overridden sign-in path still detected",
			"https://sso.example.test/auth/login",
			nil, "/auth/login",
			false, "still on sign-in page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loggedIn, reason := classifyLogin(tt.url, tt.alerts, tt.signInPath)
			assert.Equal(t, tt.wantLogged, loggedIn)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestSignInPathFromConfiguredURL(t *testing.T) {
	assert.Equal(t, "/users/sign_in", signInPath("https://www.cloudskillsboost.google/users/sign_in"))
	assert.Equal(t, "/auth/login", signInPath("https://sso.example.test/auth/login"))
	assert.Equal(t, "", signInPath("://broken"))
}
