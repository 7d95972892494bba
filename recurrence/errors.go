package recurrence

import (
	"errors"
	"fmt"
)

// ErrorType classifies recurrence errors
type ErrorType string

const (
	// ErrRuleParse is returned when rule text cannot be parsed.
	// Callers should treat the rule as absent rather than abort.
	ErrRuleParse ErrorType = "rule_parse"
	// ErrInvalidHorizonInput is returned for a multiplier below 1 or a shrinking horizon
	ErrInvalidHorizonInput ErrorType = "invalid_horizon_input"
)

// Error represents a recurrence-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsType reports whether err is, or wraps, a recurrence error of type t
func IsType(err error, t ErrorType) bool {
	var recErr *Error
	if errors.As(err, &recErr) {
		return recErr.Type == t
	}
	return false
}

func newParseError(message string, err error) *Error {
	return &Error{Type: ErrRuleParse, Message: message, Err: err}
}

func newHorizonError(message string) *Error {
	return &Error{Type: ErrInvalidHorizonInput, Message: message}
}
