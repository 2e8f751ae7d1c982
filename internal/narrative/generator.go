package narrative

import (
	"context"
	"errors"
	"fmt"
)

// Generator turns a prompt and base64-encoded images into narrative text.
// Implementations make exactly one attempt per call.
type Generator interface {
	Generate(ctx context.Context, prompt string, images []string) (string, error)
}

// Reason classifies an upstream failure.
type Reason string

const (
	ReasonUnavailable Reason = "unavailable"
	ReasonTimeout     Reason = "timeout"
	ReasonRejected    Reason = "rejected"
)

var (
	ErrUnavailable = errors.New("narrative upstream unavailable")
	ErrTimeout     = errors.New("narrative upstream timeout")
	ErrRejected    = errors.New("narrative upstream rejected request")
)

// Error is returned by generators for every upstream failure. Diagnostic holds
// the raw upstream payload (or transport error text) as received.
type Error struct {
	Reason     Reason
	StatusCode int
	Diagnostic string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("narrative %s", e.Reason)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Diagnostic != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Diagnostic)
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the reason sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Reason == ReasonUnavailable
	case ErrTimeout:
		return e.Reason == ReasonTimeout
	case ErrRejected:
		return e.Reason == ReasonRejected
	default:
		return false
	}
}

// Unavailable builds an unavailable error.
func Unavailable(diagnostic string, err error) *Error {
	return &Error{Reason: ReasonUnavailable, Diagnostic: diagnostic, Err: err}
}

// Timeout builds a timeout error.
func Timeout(diagnostic string, err error) *Error {
	return &Error{Reason: ReasonTimeout, Diagnostic: diagnostic, Err: err}
}

// Rejected builds a rejected error carrying the upstream reason.
func Rejected(statusCode int, reason string) *Error {
	return &Error{Reason: ReasonRejected, StatusCode: statusCode, Diagnostic: reason}
}
