package persistence

import (
	"errors"
	"fmt"
)

// ErrStoreClosed is returned when performing any persistence operation on a
// closed store or backend.
var ErrStoreClosed = errors.New("store is closed")

// DuplicateInstanceError is returned when creating a process instance with an
// ID that is already in use.
type DuplicateInstanceError struct {
	ProcessID  string
	InstanceID string
}

func (e DuplicateInstanceError) Error() string {
	return fmt.Sprintf(
		"process instance '%s' of process '%s' already exists",
		e.InstanceID,
		e.ProcessID,
	)
}

// ConflictError is returned when an instance can not be updated because it has
// been modified since it was last read.
type ConflictError struct {
	ProcessID  string
	InstanceID string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf(
		"optimistic concurrency conflict updating process instance '%s' of process '%s'",
		e.InstanceID,
		e.ProcessID,
	)
}

// NotFoundError is returned when a process instance that is expected to exist
// can not be found.
type NotFoundError struct {
	ProcessID  string
	InstanceID string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf(
		"process instance '%s' of process '%s' does not exist",
		e.InstanceID,
		e.ProcessID,
	)
}

// UnavailableError is returned when a backend can not serve a request in a
// timely manner.
type UnavailableError struct {
	// Backend is the name of the backend.
	Backend string

	// Cause is the underlying error.
	Cause error
}

func (e UnavailableError) Error() string {
	return fmt.Sprintf(
		"%s backend is unavailable: %s",
		e.Backend,
		e.Cause,
	)
}

// Unwrap returns the underlying error.
func (e UnavailableError) Unwrap() error {
	return e.Cause
}

// SessionMismatchError is returned when a backend is given a session that was
// started by a different kind of backend.
type SessionMismatchError struct {
	Backend string
	Session Session
}

func (e SessionMismatchError) Error() string {
	return fmt.Sprintf(
		"%s backend can not participate in a %s session",
		e.Backend,
		e.Session.Backend(),
	)
}
