package editor

import (
	"errors"
	"fmt"
)

// ErrorType classifies editor errors
type ErrorType string

const (
	ErrSessionNotFound ErrorType = "session_not_found"
	ErrInvalidIndex    ErrorType = "invalid_index"
	ErrInvalidRequest  ErrorType = "invalid_request"
	ErrNoObjectStore   ErrorType = "no_object_store"
	ErrConflict        ErrorType = "conflict"
)

// Error represents an editing session error
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

// IsType reports whether err is an editor error of type t
func IsType(err error, t ErrorType) bool {
	var ee *Error
	return errors.As(err, &ee) && ee.Type == t
}

func notFound(id string) error {
	return &Error{Type: ErrSessionNotFound, Message: fmt.Sprintf("session %q not found", id)}
}
