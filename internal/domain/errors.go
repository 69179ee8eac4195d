package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable classification of a workflow guard failure.
type ErrorKind string

const (
	KindEventNotFound         ErrorKind = "EVENT_NOT_FOUND"
	KindRegistrationNotFound  ErrorKind = "REGISTRATION_NOT_FOUND"
	KindInvalidTransition     ErrorKind = "INVALID_TRANSITION"
	KindInvalidStatus         ErrorKind = "INVALID_STATUS"
	KindInvalidCapacity       ErrorKind = "INVALID_CAPACITY"
	KindEventFull             ErrorKind = "EVENT_FULL"
	KindInvalidTime           ErrorKind = "INVALID_TIME"
	KindEventNotOpened        ErrorKind = "EVENT_NOT_OPENED"
	KindRegistrationTooLate   ErrorKind = "REGISTRATION_TOO_LATE"
	KindCancellationTooLate   ErrorKind = "CANCELLATION_TOO_LATE"
	KindAlreadyRegistered     ErrorKind = "ALREADY_REGISTERED"
	KindCannotCancel          ErrorKind = "CANNOT_CANCEL"
	KindEditLimitExceeded     ErrorKind = "EDIT_LIMIT_EXCEEDED"
	KindIncompleteEvent       ErrorKind = "INCOMPLETE_EVENT"
	KindEventNotEditable      ErrorKind = "EVENT_NOT_EDITABLE"
	KindCannotCloseEmptyEvent ErrorKind = "CANNOT_CLOSE_EMPTY_EVENT"

	// KindConcurrentModification means an optimistic write lost to a
	// concurrent transition; callers re-read and re-evaluate their guards.
	KindConcurrentModification ErrorKind = "CONCURRENT_MODIFICATION"
)

// Error is a workflow guard failure. Every guard in the engine fails with one
// of these; storage failures stay plain errors and are wrapped by the callers.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}

	return fmt.Sprintf("%v: %v", e.Kind, e.Detail)
}

// Is matches on Kind only, so errors.Is(err, ErrEventFull) works regardless
// of the detail text.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}

	return e.Kind == t.Kind
}

// E builds a workflow error with a formatted detail.
func E(kind ErrorKind, format string, args ...any) *Error {
	return &Error{
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	}
}

// KindOf extracts the workflow kind from err, unwrapping as needed.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}

	return "", false
}

// Kind-only sentinels for errors.Is checks across layers.
var (
	ErrEventNotFound          = &Error{Kind: KindEventNotFound}
	ErrRegistrationNotFound   = &Error{Kind: KindRegistrationNotFound}
	ErrInvalidTransition      = &Error{Kind: KindInvalidTransition}
	ErrInvalidStatus          = &Error{Kind: KindInvalidStatus}
	ErrInvalidCapacity        = &Error{Kind: KindInvalidCapacity}
	ErrEventFull              = &Error{Kind: KindEventFull}
	ErrInvalidTime            = &Error{Kind: KindInvalidTime}
	ErrEventNotOpened         = &Error{Kind: KindEventNotOpened}
	ErrRegistrationTooLate    = &Error{Kind: KindRegistrationTooLate}
	ErrCancellationTooLate    = &Error{Kind: KindCancellationTooLate}
	ErrAlreadyRegistered      = &Error{Kind: KindAlreadyRegistered}
	ErrCannotCancel           = &Error{Kind: KindCannotCancel}
	ErrEditLimitExceeded      = &Error{Kind: KindEditLimitExceeded}
	ErrIncompleteEvent        = &Error{Kind: KindIncompleteEvent}
	ErrEventNotEditable       = &Error{Kind: KindEventNotEditable}
	ErrCannotCloseEmptyEvent  = &Error{Kind: KindCannotCloseEmptyEvent}
	ErrConcurrentModification = &Error{Kind: KindConcurrentModification}
)
