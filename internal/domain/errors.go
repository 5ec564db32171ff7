package domain

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by the ledger, escrow, campaign and
// review packages wraps exactly one of these, or is an infrastructure error.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUnauthorized      = errors.New("unauthorized")
)

var kinds = []error{ErrValidation, ErrNotFound, ErrConflict, ErrInsufficientFunds, ErrUnauthorized}

// Error is a typed failure carrying its kind and a caller-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) error {
	return newError(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func Conflictf(format string, args ...any) error {
	return newError(ErrConflict, format, args...)
}

func InsufficientFundsf(format string, args ...any) error {
	return newError(ErrInsufficientFunds, format, args...)
}

func Unauthorizedf(format string, args ...any) error {
	return newError(ErrUnauthorized, format, args...)
}

// KindOf returns the failure kind wrapped by err, or nil when err is not a
// domain failure.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message returns the caller-facing message of a domain failure.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	if k := KindOf(err); k != nil {
		return k.Error()
	}
	return err.Error()
}

// KindName is the stable label for err's kind, used in API bodies and metric
// labels. Infrastructure errors are "internal".
func KindName(err error) string {
	switch KindOf(err) {
	case ErrValidation:
		return "validation"
	case ErrNotFound:
		return "not_found"
	case ErrConflict:
		return "conflict"
	case ErrInsufficientFunds:
		return "insufficient_funds"
	case ErrUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}
