// Package validate holds the field validators shared by sign-up, booking,
// rental and contact forms.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is used when a phone number has no country prefix.
const DefaultRegion = "IN"

var (
	ErrEmail    = errors.New("please enter a valid email address")
	ErrPhone    = errors.New("please enter a valid phone number")
	ErrName     = errors.New("name must be 2-50 characters and contain only letters, spaces, dots, apostrophes or hyphens")
	ErrPassword = errors.New("password must be at least 8 characters and contain a letter and a digit")
	ErrRequired = errors.New("field is required")
)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	namePattern  = regexp.MustCompile(`^[\p{L} .'\-]{2,50}$`)
)

// Email checks the address shape only; deliverability is not tested.
func Email(s string) error {
	if !emailPattern.MatchString(strings.TrimSpace(s)) {
		return ErrEmail
	}
	return nil
}

// Phone accepts E.164 numbers or national numbers for DefaultRegion.
func Phone(s string) error {
	_, err := NormalizePhone(s)
	return err
}

// NormalizePhone returns the E.164 form of s.
func NormalizePhone(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrPhone
	}
	num, err := phonenumbers.Parse(s, DefaultRegion)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", ErrPhone
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func Name(s string) error {
	s = strings.TrimSpace(s)
	if !namePattern.MatchString(s) {
		return ErrName
	}
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return ErrName
	}
	return nil
}

func Password(s string) error {
	if len(s) < 8 {
		return ErrPassword
	}
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return ErrPassword
	}
	return nil
}

// Error ties a failed check to the input field it concerns, letting callers
// tell bad input apart from internal failures.
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Field wraps err as a validation failure on field. A nil err stays nil.
func Field(field string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Field: field, Err: err}
}

// Fieldf is Field with a formatted message.
func Fieldf(field, format string, args ...any) error {
	return &Error{Field: field, Err: fmt.Errorf(format, args...)}
}

// IsValidation reports whether err wraps a validation failure.
func IsValidation(err error) bool {
	var v *Error
	return errors.As(err, &v)
}

// Required returns ErrRequired when s is blank.
func Required(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrRequired
	}
	return nil
}
