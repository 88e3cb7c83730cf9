package shared

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the transport layers.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
	KindStore
	KindUnavailable
	KindCatalogUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindStore:
		return "store"
	case KindUnavailable:
		return "unavailable"
	case KindCatalogUnavailable:
		return "catalog_unavailable"
	default:
		return "internal"
	}
}

// Error is the error type surfaced by the core. Code is a stable machine-readable
// identifier and Message is safe to show to a caller; Err carries the underlying cause
// and is never written to a response.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or out-of-range input.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Unauthorized reports a missing or invalid caller identity.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Code: "unauthorized", Message: message}
}

// NotFound reports an entity that does not exist within the caller's scope.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Conflict reports a duplicate or otherwise conflicting write.
func Conflict(code, message string, err error) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message, Err: err}
}

// Store wraps a failure of the relational store.
func Store(err error) *Error {
	return &Error{Kind: KindStore, Code: "internal_error", Message: "internal error", Err: err}
}

// Unavailable wraps a failure to obtain a store connection.
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Code: "store_unavailable", Message: "service temporarily unavailable", Err: err}
}

// CatalogUnavailable reports that the recipe source could not be read.
func CatalogUnavailable(code, message string, err error) *Error {
	return &Error{Kind: KindCatalogUnavailable, Code: code, Message: message, Err: err}
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the machine-readable code of err, or "internal_error".
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return "internal_error"
}
