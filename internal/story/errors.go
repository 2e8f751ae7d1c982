package story

import (
	"errors"
	"fmt"

	"github.com/dae9999nam/Memory-Garden/internal/narrative"
)

// Kind is the failure category surfaced to callers.
type Kind string

const (
	KindFastValidation Kind = "fast_validation"
	KindStore          Kind = "store"
	KindUpstream       Kind = "upstream"
	KindRecordNotFound Kind = "record_not_found"
	KindPhotoNotFound  Kind = "photo_not_found"
)

// Sentinels for errors.Is.
var (
	ErrFastValidation = errors.New("fast validation failed")
	ErrStore          = errors.New("store error")
	ErrUpstream       = errors.New("upstream error")
	ErrRecordNotFound = errors.New("record not found")
	ErrPhotoNotFound  = errors.New("photo not found")
)

var kindSentinels = map[Kind]error{
	KindFastValidation: ErrFastValidation,
	KindStore:          ErrStore,
	KindUpstream:       ErrUpstream,
	KindRecordNotFound: ErrRecordNotFound,
	KindPhotoNotFound:  ErrPhotoNotFound,
}

// Error is the tagged error returned by every story operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error

	// Set for KindUpstream only.
	Reason     narrative.Reason
	Diagnostic string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// KindOf returns the kind of err, or "" when err is not a story error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationError(op string, format string, args ...any) error {
	return &Error{Kind: KindFastValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

func storeError(op string, err error) error {
	return &Error{Kind: KindStore, Op: op, Err: err}
}

func notFoundError(op, id string) error {
	return &Error{Kind: KindRecordNotFound, Op: op, Err: fmt.Errorf("story %s not found", id)}
}

func photoNotFoundError(op, id, photoID string) error {
	return &Error{Kind: KindPhotoNotFound, Op: op, Err: fmt.Errorf("photo %s not found in story %s", photoID, id)}
}

func upstreamError(op string, err error) error {
	out := &Error{Kind: KindUpstream, Op: op, Err: err, Reason: narrative.ReasonUnavailable}
	var genErr *narrative.Error
	if errors.As(err, &genErr) {
		out.Reason = genErr.Reason
		out.Diagnostic = genErr.Diagnostic
	} else if err != nil {
		out.Diagnostic = err.Error()
	}
	return out
}
