// Package fault defines the error taxonomy shared by all core operations.
// Every failure surfaced by a service carries exactly one Kind so the
// boundary can translate it without inspecting message text.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a core failure.
type Kind string

const (
	// KindValidation indicates rejected input.
	KindValidation Kind = "VALIDATION"
	// KindNotFound indicates a missing entity.
	KindNotFound Kind = "NOT_FOUND"
	// KindStateConflict indicates an operation invalid for the current status.
	KindStateConflict Kind = "STATE_CONFLICT"
	// KindAccountNotConfigured indicates a required ledger account is missing or inactive.
	KindAccountNotConfigured Kind = "ACCOUNT_NOT_CONFIGURED"
	// KindConcurrency indicates a transaction failed to serialize or commit.
	KindConcurrency Kind = "CONCURRENCY"
	// KindInternal indicates an unexpected failure.
	KindInternal Kind = "INTERNAL"
)

// Error pairs a Kind with its cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with the given kind. A nil err returns nil.
func New(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Validation builds a KindValidation error from a format string.
func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound builds a KindNotFound error from a format string.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Err: fmt.Errorf(format, args...)}
}

// StateConflict builds a KindStateConflict error from a format string.
func StateConflict(format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Err: fmt.Errorf(format, args...)}
}

// AccountNotConfigured builds a KindAccountNotConfigured error.
func AccountNotConfigured(format string, args ...any) error {
	return &Error{Kind: KindAccountNotConfigured, Err: fmt.Errorf(format, args...)}
}

// Concurrency wraps a transaction serialization failure.
func Concurrency(err error) error {
	return New(KindConcurrency, err)
}

// Internal wraps an unexpected failure.
func Internal(err error) error {
	return New(KindInternal, err)
}

// KindOf extracts the Kind from err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == kind
}
