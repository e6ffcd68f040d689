package domain

import (
	"errors"
	"fmt"
)

// Kind discriminates engine failures for callers. HTTP handlers map kinds to
// status codes and stable machine-readable response codes; nobody matches on
// message text.
type Kind string

const (
	KindMalformedPayload   Kind = "malformed_payload"
	KindUnknownReservation Kind = "unknown_reservation"
	KindUnknownToken       Kind = "unknown_token"
	KindTooEarly           Kind = "too_early"
	KindExpired            Kind = "expired"
	KindInvalidState       Kind = "invalid_state"
	KindValidation         Kind = "validation"
	KindCustomerResolution Kind = "customer_resolution"
	KindConflict           Kind = "conflict"
)

// Error is the engine's error type. Details carries whatever structured
// context the caller needs to render a precise message (window boundaries,
// current vs max counts, lifecycle state).
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetail attaches a structured detail and returns the error for chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func NewError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func WrapError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

func MalformedPayload(msg string) *Error {
	return NewError(KindMalformedPayload, msg)
}

func UnknownReservation(id string) *Error {
	return NewError(KindUnknownReservation, "reservation not found").WithDetail("reservation_id", id)
}

func UnknownToken() *Error {
	return NewError(KindUnknownToken, "QR token does not match the active token")
}

func TooEarly(hoursRemaining int) *Error {
	return NewError(KindTooEarly,
		fmt.Sprintf("QR code is not valid yet; it becomes valid in %d hour(s)", hoursRemaining)).
		WithDetail("hours_remaining", hoursRemaining)
}

func Expired(hoursOverdue int) *Error {
	return NewError(KindExpired,
		fmt.Sprintf("QR code expired %d hour(s) after the reservation window closed", hoursOverdue)).
		WithDetail("hours_overdue", hoursOverdue)
}

func InvalidState(current Status, op string) *Error {
	return NewError(KindInvalidState,
		fmt.Sprintf("operation %q is not allowed while the reservation is %s", op, current)).
		WithDetail("status", string(current))
}

func Validation(msg string) *Error {
	return NewError(KindValidation, msg)
}

func CustomerResolution(cause error) *Error {
	return WrapError(KindCustomerResolution, "could not resolve a customer for the attendance record", cause)
}

// KindOf extracts the Kind from an error chain, or "" when the error is not
// a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// AsError extracts the domain error from a chain, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}
