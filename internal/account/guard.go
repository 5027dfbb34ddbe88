package account

import (
	"fmt"
	"regexp"
	"unicode"

	"cleanup/internal/models"
)

const MinPasswordLen = 8

// Guard validates password strength and identity formats. It is
// side-effect-free; duplicate detection belongs to the lifecycle service,
// which owns store access.
type Guard struct {
	emailRe    *regexp.Regexp
	usernameRe *regexp.Regexp
}

// NewGuard compiles the configured identity patterns. Format rules are
// configuration, not code.
func NewGuard(emailPattern, usernamePattern string) (*Guard, error) {
	emailRe, err := regexp.Compile(emailPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid email pattern: %w", err)
	}
	usernameRe, err := regexp.Compile(usernamePattern)
	if err != nil {
		return nil, fmt.Errorf("invalid username pattern: %w", err)
	}
	return &Guard{emailRe: emailRe, usernameRe: usernameRe}, nil
}

// ValidatePassword enforces the password policy: at least 8 characters, with
// one lowercase letter, one uppercase letter and one digit. Other characters
// are welcome but not required.
func (g *Guard) ValidatePassword(password string) error {
	var reasons []string

	if len(password) < MinPasswordLen {
		reasons = append(reasons, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}

	hasLower := false
	hasUpper := false
	hasDigit := false
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLower {
		reasons = append(reasons, "must contain at least one lowercase letter")
	}
	if !hasUpper {
		reasons = append(reasons, "must contain at least one uppercase letter")
	}
	if !hasDigit {
		reasons = append(reasons, "must contain at least one digit")
	}

	if len(reasons) > 0 {
		return &models.ValidationError{Reasons: reasons}
	}
	return nil
}

// ValidateIdentity checks email and username against the configured formats.
// An empty username is allowed; it will be defaulted from the email.
func (g *Guard) ValidateIdentity(email, username string) error {
	if !g.emailRe.MatchString(email) {
		return &models.ValidationError{Reasons: []string{"malformed email address"}}
	}
	if username != "" && !g.usernameRe.MatchString(username) {
		return &models.ValidationError{Reasons: []string{"malformed username"}}
	}
	return nil
}
