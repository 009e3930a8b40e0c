package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	MaxUsernameLength = 150
	// bcrypt ignores everything past 72 bytes
	MaxPasswordBytes   = 72
	MaxNotificationLen = 20
)

var (
	// ErrInvalidInput indicates the input failed validation
	ErrInvalidInput = errors.New("invalid input")

	validate = validator.New()
)

// SanitizeString removes potentially dangerous characters and trims whitespace
func SanitizeString(input string) string {
	// Trim whitespace
	input = strings.TrimSpace(input)

	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters except newline and tab
	var builder strings.Builder
	for _, r := range input {
		if !unicode.IsControl(r) || r == '\n' || r == '\t' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// ValidateUsername checks if a username is valid
func ValidateUsername(username string) error {
	username = SanitizeString(username)

	if username == "" {
		return errors.New("username is required")
	}

	if len(username) > MaxUsernameLength {
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLength)
	}

	return nil
}

// ValidatePassword checks a new password and its confirmation.
func ValidatePassword(password, confirm string) error {
	if password == "" {
		return errors.New("password is required")
	}

	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("password must not exceed %d bytes", MaxPasswordBytes)
	}

	if password != confirm {
		return errors.New("passwords do not match")
	}

	return nil
}

// ValidateEmail checks a single address. Empty is allowed.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if err := validate.Var(email, "email"); err != nil {
		return fmt.Errorf("%w: %q is not a valid email address", ErrInvalidInput, email)
	}
	return nil
}

// ValidateEmailList checks every address in a notification list and returns
// the trimmed, non-empty entries.
func ValidateEmailList(emails []string) ([]string, error) {
	cleaned := make([]string, 0, len(emails))
	for _, e := range emails {
		if e = strings.TrimSpace(e); e != "" {
			cleaned = append(cleaned, e)
		}
	}

	if len(cleaned) > MaxNotificationLen {
		return nil, fmt.Errorf("%w: at most %d notification emails allowed", ErrInvalidInput, MaxNotificationLen)
	}

	if err := validate.Var(cleaned, "dive,email"); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: %q is not a valid email address", ErrInvalidInput, verrs[0].Value())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return cleaned, nil
}
