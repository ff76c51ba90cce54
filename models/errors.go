package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the pipeline can report.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindInvalidInput      ErrorKind = "invalid_input"
	KindTimeout           ErrorKind = "timeout"
	KindResourceExhausted ErrorKind = "resource_exhausted"
	KindInternal          ErrorKind = "internal"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindAlreadyInProgress ErrorKind = "already_in_progress"
	KindAlreadyTerminal   ErrorKind = "already_terminal"
	KindEmptyFile         ErrorKind = "empty_file"
	KindFileTooLarge      ErrorKind = "file_too_large"
	KindInvalidStructure  ErrorKind = "invalid_structure"
)

// IsExecutionKind reports whether k is one of the kinds a handler may fail with.
func (k ErrorKind) IsExecutionKind() bool {
	switch k {
	case KindInvalidInput, KindTimeout, KindResourceExhausted, KindInternal:
		return true
	}
	return false
}

// ConversionError is the single error type crossing package boundaries.
type ConversionError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// Is matches any *ConversionError of the same kind, so sentinels work with errors.Is.
func (e *ConversionError) Is(target error) bool {
	var t *ConversionError
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = &ConversionError{Kind: KindValidation, Message: "validation failed"}
	ErrUnsupportedFormat = &ConversionError{Kind: KindUnsupportedFormat, Message: "unsupported format"}
	ErrInvalidInput      = &ConversionError{Kind: KindInvalidInput, Message: "invalid input"}
	ErrTimeout           = &ConversionError{Kind: KindTimeout, Message: "timed out"}
	ErrResourceExhausted = &ConversionError{Kind: KindResourceExhausted, Message: "resource exhausted"}
	ErrInternal          = &ConversionError{Kind: KindInternal, Message: "internal error"}
	ErrNotFound          = &ConversionError{Kind: KindNotFound, Message: "not found"}
	ErrInvalidTransition = &ConversionError{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrAlreadyInProgress = &ConversionError{Kind: KindAlreadyInProgress, Message: "already in progress"}
	ErrAlreadyTerminal   = &ConversionError{Kind: KindAlreadyTerminal, Message: "already terminal"}
	ErrEmptyFile         = &ConversionError{Kind: KindEmptyFile, Message: "file is empty"}
	ErrFileTooLarge      = &ConversionError{Kind: KindFileTooLarge, Message: "file too large"}
	ErrInvalidStructure  = &ConversionError{Kind: KindInvalidStructure, Message: "invalid request structure"}
)

// NewError builds a ConversionError with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *ConversionError {
	return &ConversionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a ConversionError around a cause.
func WrapError(kind ErrorKind, err error, format string, args ...any) *ConversionError {
	return &ConversionError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the kind of err, defaulting to internal.
func KindOf(err error) ErrorKind {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// MessageOf returns the human-readable part of err without the kind prefix.
func MessageOf(err error) string {
	var ce *ConversionError
	if errors.As(err, &ce) {
		if ce.Err != nil {
			return fmt.Sprintf("%s: %v", ce.Message, ce.Err)
		}
		return ce.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
