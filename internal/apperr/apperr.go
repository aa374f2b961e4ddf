package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error so transport layers can map it to a
// status code without string matching.
type Kind string

const (
	KindNotFound      Kind = "NOT_FOUND"
	KindUnauthorized  Kind = "UNAUTHORIZED"
	KindInvalidState  Kind = "INVALID_STATE"
	KindInvalidTiming Kind = "INVALID_TIMING"
	KindValidation    Kind = "VALIDATION"
)

// Error is a typed domain error carrying a kind and a human-readable reason.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Is makes errors.Is(err, apperr.NotFound("")) match on kind alone.
func (e *Error) Is(target error) bool {
	var ae *Error
	if !errors.As(target, &ae) {
		return false
	}
	return e.Kind == ae.Kind
}

func NotFound(reason string) *Error {
	return &Error{Kind: KindNotFound, Reason: reason}
}

func Unauthorized(reason string) *Error {
	return &Error{Kind: KindUnauthorized, Reason: reason}
}

func InvalidState(reason string) *Error {
	return &Error{Kind: KindInvalidState, Reason: reason}
}

func InvalidTiming(reason string) *Error {
	return &Error{Kind: KindInvalidTiming, Reason: reason}
}

func Validation(reason string) *Error {
	return &Error{Kind: KindValidation, Reason: reason}
}

// KindOf extracts the kind of err, or "" if err is not a domain error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
