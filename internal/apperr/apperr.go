// Package apperr holds the error kinds shared by the checkout core and its transports.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInsufficientStock Kind = "insufficient_stock"
	KindNotFound          Kind = "not_found"
	KindUnauthorized      Kind = "unauthorized"
	KindInvalidTransition Kind = "invalid_transition"
	KindInvalidAddress    Kind = "invalid_address"
	KindValidation        Kind = "validation"
	KindGateway           Kind = "gateway"
	KindInternal          Kind = "internal"
)

// Error carries a stable kind plus a human readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the bare sentinels below, so errors.Is(err, apperr.ErrNotFound)
// holds for any NotFound error regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrInvalidAddress    = &Error{Kind: KindInvalidAddress}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrGateway           = &Error{Kind: KindGateway}
	ErrInternal          = &Error{Kind: KindInternal}
)

func New(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func InsufficientStock(format string, args ...any) error {
	return New(KindInsufficientStock, format, args...)
}

func NotFound(format string, args ...any) error { return New(KindNotFound, format, args...) }

func Unauthorized(format string, args ...any) error { return New(KindUnauthorized, format, args...) }

func InvalidTransition(format string, args ...any) error {
	return New(KindInvalidTransition, format, args...)
}

func InvalidAddress(format string, args ...any) error {
	return New(KindInvalidAddress, format, args...)
}

func Validation(format string, args ...any) error { return New(KindValidation, format, args...) }

func Gateway(err error, format string, args ...any) error {
	return Wrap(KindGateway, err, format, args...)
}

func Internal(err error, format string, args ...any) error {
	return Wrap(KindInternal, err, format, args...)
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
