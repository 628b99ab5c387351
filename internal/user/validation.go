package user

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Input limits for signup.
const (
	MaxEmailLen = 100
	MaxNameLen  = 50
)

// FieldError names the signup field that failed validation.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Msg
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateString(value, field string, minLen, maxLen int) error {
	if !utf8.ValidString(value) {
		return &FieldError{Field: field, Msg: "contains invalid UTF-8"}
	}
	n := utf8.RuneCountInString(value)
	if n < minLen || n > maxLen {
		return &FieldError{Field: field, Msg: fmt.Sprintf("must be %d-%d characters", minLen, maxLen)}
	}
	return nil
}

// ValidateEmail checks the address the way the signup form does.
func ValidateEmail(email string) error {
	if !strings.Contains(email, "@") {
		return &FieldError{Field: "email", Msg: "please enter a valid email address"}
	}
	if utf8.RuneCountInString(email) > MaxEmailLen {
		return &FieldError{Field: "email", Msg: fmt.Sprintf("must be less than %d characters", MaxEmailLen)}
	}
	return nil
}

// ValidateSignup checks every signup field and reports all failures at once.
func ValidateSignup(email, firstName, lastName string) error {
	return errors.Join(
		ValidateEmail(email),
		validateString(strings.TrimSpace(firstName), "first name", 1, MaxNameLen),
		validateString(strings.TrimSpace(lastName), "last name", 1, MaxNameLen),
	)
}
