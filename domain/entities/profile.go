package entities

import (
	"fmt"
	"strings"
)

// ProfileRecord holds the registration identity for a single run.
// It is immutable input: validate once, then hand it to the automation.
type ProfileRecord struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Company   string `json:"company,omitempty"`
	Country   string `json:"country,omitempty"`
}

const minPasswordLength = 8

// Validate - checks that all critical fields are present and usable
func (p ProfileRecord) Validate() error {
	var missing []string

	if strings.TrimSpace(p.FirstName) == "" {
		missing = append(missing, "first name")
	}
	if strings.TrimSpace(p.LastName) == "" {
		missing = append(missing, "last name")
	}
	if strings.TrimSpace(p.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(p.Password) == "" {
		missing = append(missing, "password")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if !strings.Contains(p.Email, "@") {
		return fmt.Errorf("invalid email address: %q", p.Email)
	}
	if len(p.Password) < minPasswordLength {
		return fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	return nil
}
