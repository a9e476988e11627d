package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// ErrorKind labels the broad failure class of a wrapped error.
type ErrorKind string

const (
	KindExternalTool  ErrorKind = "external_tool"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindTransient     ErrorKind = "transient"
)

// ErrorDetails is the structured view of a wrapped stage error used for
// logging and failure classification.
type ErrorDetails struct {
	Kind      ErrorKind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

type wrappedError struct {
	marker    error
	stage     string
	operation string
	message   string
	cause     error
}

func (e *wrappedError) Error() string {
	detail := buildDetail(e.stage, e.operation, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.marker.Error(), detail, e.cause.Error())
	}
	return fmt.Sprintf("%s: %s", e.marker.Error(), detail)
}

// ErrorKind exposes the classification string used by the store's failure
// status mapping.
func (e *wrappedError) ErrorKind() string {
	return string(kindForMarker(e.marker))
}

func (e *wrappedError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later status classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &wrappedError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		cause:     err,
	}
}

// Details extracts the structured failure record from an error produced by
// Wrap. Plain errors yield a transient record with the error as cause.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindTransient}
	}
	var wrapped *wrappedError
	if errors.As(err, &wrapped) {
		return ErrorDetails{
			Kind:      kindForMarker(wrapped.marker),
			Stage:     wrapped.stage,
			Operation: wrapped.operation,
			Message:   buildDetail(wrapped.stage, wrapped.operation, wrapped.message),
			Cause:     wrapped.cause,
		}
	}
	return ErrorDetails{
		Kind:    kindForError(err),
		Message: strings.TrimSpace(err.Error()),
		Cause:   err,
	}
}

func kindForMarker(marker error) ErrorKind {
	switch {
	case errors.Is(marker, ErrExternalTool):
		return KindExternalTool
	case errors.Is(marker, ErrValidation):
		return KindValidation
	case errors.Is(marker, ErrConfiguration):
		return KindConfiguration
	case errors.Is(marker, ErrNotFound):
		return KindNotFound
	case errors.Is(marker, ErrTimeout):
		return KindTimeout
	default:
		return KindTransient
	}
}

func kindForError(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	default:
		return KindTransient
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
