package core

import (
	"errors"
	"fmt"
)

// Kind classifies job failures.
type Kind string

const (
	// FetchFailure: the document source could not be downloaded. Fatal.
	FetchFailure Kind = "FetchFailure"
	// StructureNotFound: no main file could be located. Fatal.
	StructureNotFound Kind = "StructureNotFound"
	// OversizedUnit: a minimal unit exceeds the token budget. Reported, not fatal.
	OversizedUnit Kind = "OversizedUnit"
	// MalformedResponse: the backend reply lacks exactly one fenced block. Fatal.
	MalformedResponse Kind = "MalformedResponse"
	// CompileFailure: every build attempt failed. Fatal after retries.
	CompileFailure Kind = "CompileFailure"
	// SlotRaceOverrun: the post-increment read exceeded the limit. Internal only.
	SlotRaceOverrun Kind = "SlotRaceOverrun"
	// Internal covers anything unclassified.
	Internal Kind = "Internal"
)

// Fatal reports whether a failure of this kind ends the job.
func (k Kind) Fatal() bool {
	switch k {
	case OversizedUnit, SlotRaceOverrun:
		return false
	default:
		return true
	}
}

// Error is a classified failure carrying structured details.
type Error struct {
	Code    Kind           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, &Error{Code: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Err == nil
}

// NewError wraps err under code with optional details.
func NewError(err error, code Kind, details map[string]any) *Error {
	return &Error{Code: code, Err: err, Details: details}
}

// Errorf builds a classified error from a format string; %w operands stay
// reachable through errors.Is and errors.As.
func Errorf(code Kind, format string, args ...any) *Error {
	err := fmt.Errorf(format, args...)
	return &Error{Code: code, Message: err.Error(), Err: errors.Unwrap(err)}
}

// KindOf extracts the classification of err, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the human-readable part of err without its kind prefix.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch {
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Code)
	}
}
