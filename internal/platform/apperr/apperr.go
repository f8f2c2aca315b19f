// Package apperr carries the error taxonomy shared by every POS module.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so the checkout boundary can decide what the
// cashier sees and whether an explicit retry makes sense.
type Kind string

const (
	KindUnknown               Kind = "UNKNOWN"
	KindNotFound              Kind = "NOT_FOUND"
	KindValidation            Kind = "VALIDATION"
	KindUnauthorized          Kind = "UNAUTHORIZED"
	KindForbidden             Kind = "FORBIDDEN"
	KindInsufficientPayment   Kind = "INSUFFICIENT_PAYMENT"
	KindInsufficientStock     Kind = "INSUFFICIENT_STOCK"
	KindAlreadyOpen           Kind = "ALREADY_OPEN"
	KindPaymentCreationFailed Kind = "PAYMENT_CREATION_FAILED"
	KindRegistrationFailed    Kind = "REGISTRATION_FAILED"
	KindInvalidState          Kind = "INVALID_STATE"
)

// Error is a classified error. Message is safe to show to a cashier.
type Error struct {
	Kind    Kind
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

// New builds a classified error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error in the chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// Message returns the cashier-facing message of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// Retryable reports whether an explicit user retry may succeed.
func Retryable(kind Kind) bool {
	switch kind {
	case KindPaymentCreationFailed, KindRegistrationFailed, KindInsufficientPayment, KindNotFound:
		return true
	}
	return false
}

// HTTPStatus maps a kind to the status code handlers respond with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindInsufficientPayment, KindInsufficientStock:
		return http.StatusUnprocessableEntity
	case KindAlreadyOpen, KindInvalidState:
		return http.StatusConflict
	case KindPaymentCreationFailed, KindRegistrationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
