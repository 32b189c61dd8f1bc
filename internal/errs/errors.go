// Package errs provides the error type shared by every schemasync subsystem.
//
// Catalog readers, the tunnel, the profile store and the applier wrap their
// native errors into *errs.Error. Callers branch on the Is* predicates and
// never import driver packages to classify a failure:
//
//	if errs.IsConnectionFailed(err) {
//	    log.Errorf("database unreachable: %v", err)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing driver-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindConnectionFailed         // database or tunnel hop unreachable, auth rejected
	ErrKindEmptySchema              // inspection succeeded but returned no tables
	ErrKindConfiguration            // descriptor is incomplete or unsupported
	ErrKindUnknownDirection         // sync direction outside AtoB / BtoA
	ErrKindNotFound                 // profile, object or snapshot file missing
	ErrKindInvalidInput             // malformed request or file
	ErrKindQueryFailed              // catalog query or DDL statement failed
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindEmptySchema:
		return "empty_schema"
	case ErrKindConfiguration:
		return "configuration"
	case ErrKindUnknownDirection:
		return "unknown_direction"
	case ErrKindNotFound:
		return "not_found"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindQueryFailed:
		return "query_failed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by schemasync subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message and underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsEmptySchema reports whether err flags a suspiciously empty inspection.
func IsEmptySchema(err error) bool {
	return KindOf(err) == ErrKindEmptySchema
}

// IsConfiguration reports whether err was raised before any network attempt
// because the descriptor was unusable.
func IsConfiguration(err error) bool {
	return KindOf(err) == ErrKindConfiguration
}

// IsUnknownDirection reports whether err rejected a sync direction token.
func IsUnknownDirection(err error) bool {
	return KindOf(err) == ErrKindUnknownDirection
}

// IsNotFound reports whether err represents a missing profile or object.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsQueryFailed reports whether err is a SQL execution error.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// KindOf extracts the ErrKind from the first *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
