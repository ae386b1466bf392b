package domain

import (
	"regexp"
	"time"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// ValidateEmail checks the address against an RFC 5322-ish pattern.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return InvalidEmailError{Email: email}
	}
	return nil
}

// ValidateDate parses an RFC 3339 timestamp without constraining its value.
func ValidateDate(value, field string) error {
	if _, err := time.Parse(time.RFC3339, value); err != nil {
		return InvalidDateError{Field: field}
	}
	return nil
}

// ValidateFutureDate parses an RFC 3339 timestamp and requires it to be
// strictly after now. Field names the offending attribute in the error.
func ValidateFutureDate(value, field string, now time.Time) error {
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return NotFutureDateError{Field: field}
	}
	if !ts.After(now) {
		return NotFutureDateError{Field: field}
	}
	return nil
}
