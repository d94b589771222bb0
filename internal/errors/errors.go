// Package errors defines the coded errors surfaced by llbrew.
//
// Every failure that aborts an install carries an ErrorCode, the stage it
// originated from (when there is one) and the verbatim diagnostic text of the
// external tool that failed.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	ErrUnknown ErrorCode = "UNKNOWN"

	// Construction time.
	ErrMalformedFormula ErrorCode = "MALFORMED_FORMULA"
	ErrFormulaNotFound  ErrorCode = "FORMULA_NOT_FOUND"

	// Environment preconditions.
	ErrDirectoryConflict ErrorCode = "DIRECTORY_CONFLICT"
	ErrMissingDependency ErrorCode = "MISSING_DEPENDENCY"
	ErrSourceFetch       ErrorCode = "SOURCE_FETCH"
	ErrConfigLoad        ErrorCode = "CONFIG_LOAD"

	// Pre-build.
	ErrPatchIntegrity   ErrorCode = "PATCH_INTEGRITY"
	ErrPatchApplication ErrorCode = "PATCH_APPLICATION"

	// Build time.
	ErrConfigure        ErrorCode = "CONFIGURE"
	ErrBuild            ErrorCode = "BUILD"
	ErrInstall          ErrorCode = "INSTALL"
	ErrSecondaryInstall ErrorCode = "SECONDARY_INSTALL"
)

// Error is a structured error with a code, an optional stage and the
// diagnostic output of the external command that caused it.
type Error struct {
	Code       ErrorCode
	Message    string
	Stage      string
	Diagnostic string
	Details    map[string]interface{}
	Wrapped    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.Code))
	b.WriteString("] ")
	if e.Stage != "" {
		b.WriteString(e.Stage)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Wrapped != nil {
		b.WriteString(": ")
		b.WriteString(e.Wrapped.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates an Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates an Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps err. It returns nil when err is nil.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	e := New(code, message)
	e.Wrapped = err
	return e
}

// Wrapf wraps err with a formatted message. It returns nil when err is nil.
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// WithStage records the stage the error originated from.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithDiagnostic attaches the verbatim output of an external tool.
func (e *Error) WithDiagnostic(text string) *Error {
	e.Diagnostic = text
	return e
}

// WithDetail adds a detail to the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// DetailKeys returns the detail keys in sorted order.
func (e *Error) DetailKeys() []string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CodeOf returns the code of the first *Error in err's chain, or ErrUnknown.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

// IsCode reports whether the first *Error in err's chain has code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// As is a convenience around errors.As for *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
