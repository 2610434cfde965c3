package errs

import (
	"errors"
	"fmt"
)

type ErrorType int

const (
	// Job-fatal: the source URL could not be resolved to a playable stream.
	TypeExtraction ErrorType = iota
	// Job-fatal: the streaming transcription connection could not be set up
	// or torn down cleanly.
	TypeTranscriptionConnection
	// Unit-level: a translation call failed, the unit is skipped.
	TypeTranslation
	// Unit-level: a synthesis call failed, the unit is skipped.
	TypeSynthesis
	// Surfaced to the caller: unknown job id.
	TypeNotFound
	// Surfaced to the caller: output requested before completion.
	TypeNotReady
	// Surfaced to the caller: malformed request input, such as an
	// unparseable language tag.
	TypeInvalidInput
	TypeUnknown
)

func (t ErrorType) String() string {
	switch t {
	case TypeExtraction:
		return "Extraction"
	case TypeTranscriptionConnection:
		return "TranscriptionConnection"
	case TypeTranslation:
		return "Translation"
	case TypeSynthesis:
		return "Synthesis"
	case TypeNotFound:
		return "NotFound"
	case TypeNotReady:
		return "NotReady"
	case TypeInvalidInput:
		return "InvalidInput"
	default:
		return "Unknown"
	}
}

// Error is the typed error used across the dubbing pipeline. The type decides
// the propagation policy: unit-level types are skipped, job-fatal types abort
// the pipeline, caller-facing types map to API responses.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

func Newf(errorType ErrorType, format string, args ...any) *Error {
	return &Error{Type: errorType, Message: fmt.Sprintf(format, args...)}
}

func Wrap(err error, errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message, Cause: err}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsType reports whether err (or anything it wraps) is an Error of the given type.
func IsType(err error, errorType ErrorType) bool {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type == errorType
	}
	return false
}
