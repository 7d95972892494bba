package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
)

// Error types
type ErrorType string

const (
	ErrNotFound     ErrorType = "not_found"
	ErrInvalidInput ErrorType = "invalid_input"
	// ErrPreconditionFailed means the stored ETag no longer matches the caller's
	ErrPreconditionFailed ErrorType = "precondition_failed"
)

// Error represents a storage-related error
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

// IsNotFound reports whether err is a storage error of type ErrNotFound
func IsNotFound(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == ErrNotFound
}

// IsPreconditionFailed reports whether err is a storage error of type ErrPreconditionFailed
func IsPreconditionFailed(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == ErrPreconditionFailed
}

// CalendarObject is a stored calendar object holding one recurring component
type CalendarObject struct {
	UserID   string
	ID       string
	ETag     string
	Modified time.Time
	// Component is the VEVENT (or VTODO) carrying DTSTART, RRULE and EXDATE
	Component *ical.Component
}

// Storage is the store of record for calendar objects edited through sessions
type Storage interface {
	GetObject(ctx context.Context, userID, objectID string) (*CalendarObject, error)
	// UpdateObject replaces a stored object and returns its new ETag. A non-empty
	// obj.ETag must equal the stored ETag, otherwise ErrPreconditionFailed is returned.
	UpdateObject(ctx context.Context, obj *CalendarObject) (string, error)
}
