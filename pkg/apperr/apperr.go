// Package apperr carries the error kinds shared by every bounded context.
// Callers switch on KindOf(err) instead of matching concrete error types.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	// Fault is the zero value: anything that does not say otherwise is an
	// infrastructure failure.
	Fault Kind = iota
	Invalid
	InsufficientStock
	NotFound
	Conflict
)

func (k Kind) String() string {
	switch k {
	case Invalid:
		return "invalid_request"
	case InsufficientStock:
		return "insufficient_stock"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "fault"
	}
}

// Kinded is implemented by domain errors that need more fields than Error.
type Kinded interface {
	error
	Kind() Kind
}

type Error struct {
	kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Kind() Kind { return e.kind }

func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{kind: kind, Message: msg, Err: err}
}

func Invalidf(format string, args ...any) *Error {
	return New(Invalid, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) *Error {
	return New(NotFound, fmt.Sprintf(format, args...))
}

// KindOf reports the kind of the first Kinded error in err's chain.
func KindOf(err error) Kind {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Fault
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
