// Package corerrors provides the structured error taxonomy used across the
// sync core (spec §7): ValidationError, ComplianceError, GeofenceWarning,
// StoreError, NetworkError, ServerError, ConflictError and IntegrityError.
// Every facade-visible failure is an *AppError so callers can branch on
// Kind without string matching.
package corerrors

import "fmt"

// Kind tags an AppError with one of the §7 error kinds.
type Kind string

const (
	KindValidation     Kind = "ValidationError"
	KindCompliance     Kind = "ComplianceError"
	KindGeofenceWarning Kind = "GeofenceWarning"
	KindStore          Kind = "StoreError"
	KindNetwork        Kind = "NetworkError"
	KindServer         Kind = "ServerError"
	KindConflict       Kind = "ConflictError"
	KindIntegrity      Kind = "IntegrityError"
)

// AppError is the structured error returned across facade boundaries.
type AppError struct {
	Kind    Kind
	Message string
	Details string
	// StatusCode is populated for ServerError; zero otherwise.
	StatusCode int
	// Code is the server-supplied error code for ServerError, when present.
	Code  string
	Cause error
}

func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Details != "" {
		msg += fmt.Sprintf(" (%s)", e.Details)
	}
	return msg
}

func (e *AppError) Unwrap() error { return e.Cause }

// New creates an AppError with no underlying cause.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Newf creates an AppError with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *AppError {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap creates an AppError that wraps an underlying cause.
func Wrap(cause error, kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

// Wrapf creates an AppError wrapping cause with a formatted message.
func Wrapf(cause error, kind Kind, format string, args ...interface{}) *AppError {
	return Wrap(cause, kind, fmt.Sprintf(format, args...))
}

// WithDetails attaches extra, non-user-facing context and returns the
// receiver for chaining.
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithDetailsf attaches formatted details.
func (e *AppError) WithDetailsf(format string, args ...interface{}) *AppError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// Is reports whether err is an *AppError of the given kind.
func Is(err error, kind Kind) bool {
	ae, ok := err.(*AppError)
	return ok && ae.Kind == kind
}

// KindOf returns err's Kind, or "" if err is not an *AppError.
func KindOf(err error) Kind {
	if ae, ok := err.(*AppError); ok {
		return ae.Kind
	}
	return ""
}

// Chain combines a list of errors (nils ignored) into one error whose
// message is each constituent joined by " -> ". Returns nil if every
// element is nil. Used to aggregate per-item drain failures (§9) without
// masking any one of them.
func Chain(errs ...error) error {
	var present []error
	for _, e := range errs {
		if e != nil {
			present = append(present, e)
		}
	}
	switch len(present) {
	case 0:
		return nil
	case 1:
		return present[0]
	default:
		msg := present[0].Error()
		for _, e := range present[1:] {
			msg += " -> " + e.Error()
		}
		return &chainedError{msg: msg, errs: present}
	}
}

type chainedError struct {
	msg  string
	errs []error
}

func (c *chainedError) Error() string { return c.msg }
