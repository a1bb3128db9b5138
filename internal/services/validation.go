package services

import (
	"unicode"
	"unicode/utf8"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 8
)

// ValidationError is a client mistake tied to one input field. Its message
// is safe to show verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

var errUsernameTaken = &ValidationError{Field: "username", Message: "Username already exists"}

// ValidateRegistration checks required fields, username shape and password
// strength, in that order, and reports the first problem.
func ValidateRegistration(reg Registration) error {
	if reg.Username == "" || reg.Password == "" {
		field := "password"
		if reg.Username == "" {
			field = "username"
		}
		return &ValidationError{Field: field, Message: "Username and password are required"}
	}
	if err := ValidateUsername(reg.Username); err != nil {
		return err
	}
	return ValidatePassword(reg.Password)
}

func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen {
		return &ValidationError{Field: "username", Message: "Username must be at least 3 characters"}
	}
	if n > maxUsernameLen {
		return &ValidationError{Field: "username", Message: "Username must be at most 64 characters"}
	}
	for _, r := range username {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return &ValidationError{Field: "username", Message: "Username must not contain spaces or control characters"}
		}
	}
	return nil
}

// ValidatePassword requires eight characters and at least one uppercase
// letter, lowercase letter, digit and symbol.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLen {
		return passwordError("Password must be at least 8 characters")
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		default:
			symbol = true
		}
	}

	switch {
	case !upper:
		return passwordError("Password must contain at least one uppercase letter")
	case !lower:
		return passwordError("Password must contain at least one lowercase letter")
	case !digit:
		return passwordError("Password must contain at least one number")
	case !symbol:
		return passwordError("Password must contain at least one special character")
	}
	return nil
}

func passwordError(msg string) *ValidationError {
	return &ValidationError{Field: "password", Message: msg}
}
