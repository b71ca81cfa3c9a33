// Package errs defines the error taxonomy shared across the store.
//
// Errors are a taxonomy, not a type hierarchy: every error returned from
// the core wraps exactly one Kind so callers (the CLI, a future RPC
// façade) can map it to a status code without type-asserting concrete
// types.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind int

const (
	// KindInternal is an unexpected failure; logged and, on the hot
	// activation path, swallowed rather than propagated.
	KindInternal Kind = iota
	// KindInvalidArgument means the input violated a stated constraint.
	KindInvalidArgument
	// KindNotFound means an id lookup failed.
	KindNotFound
	// KindConflict means a uniqueness constraint was violated (e.g. a
	// duplicate relation) or an operation cannot apply to current state
	// (e.g. "already promoted").
	KindConflict
	// KindDependency means an optional external collaborator (embedding
	// backend, vault path) was unavailable; callers may recover locally.
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// Error is a classified, optionally field-scoped error.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidArgument reports that field failed validation with msg.
func InvalidArgument(field, msg string) error {
	return &Error{Kind: KindInvalidArgument, Field: field, Msg: msg}
}

// NotFound reports that an id of the given kind could not be located.
func NotFound(kind, id string) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %q not found", kind, id)}
}

// Conflict reports a uniqueness or state conflict.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

// Dependency reports an unavailable optional collaborator.
func Dependency(msg string) error {
	return &Error{Kind: KindDependency, Msg: msg}
}

// Internal wraps an unexpected failure.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Msg: "internal error", Err: err}
}

// KindOf extracts the Kind of err, defaulting to KindInternal for
// errors that were not constructed by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
