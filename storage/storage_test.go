package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	cause := errors.New("disk on fire")
	err := &Error{Type: ErrNotFound, Message: "object not found", Err: cause}

	assert.Equal(t, "not_found: object not found: disk on fire", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "invalid_input: bad", (&Error{Type: ErrInvalidInput, Message: "bad"}).Error())
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(&Error{Type: ErrNotFound}))
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", &Error{Type: ErrNotFound})))
	assert.False(t, IsNotFound(&Error{Type: ErrInvalidInput}))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, IsPreconditionFailed(fmt.Errorf("update: %w", &Error{Type: ErrPreconditionFailed})))
	assert.False(t, IsPreconditionFailed(&Error{Type: ErrNotFound}))
	assert.False(t, IsPreconditionFailed(nil))
}
