// Package errors provides structured error types for the heatgrid planner.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and library surfaces
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow the planner's error taxonomy:
//   - INVALID_*: configuration errors - fail fast before any computation
//   - DATA_*: data-quality issues - a problem with the input geometry,
//     not a code defect; operators must be able to tell these apart
//   - TOPOLOGY_*: topological invariant violations - always fatal, they
//     indicate a defect in the topology builder itself
//   - INTERNAL_*: unexpected internal errors
//
// Numerical-stability conditions (zero loops, parallel paths, short pipes)
// are deliberately NOT errors: the convergence optimizer reports them as a
// structured summary so callers can still hand the network to the solver.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidCRS, "frame %q uses degrees", name)
//	if errors.Is(err, errors.ErrCodeInvalidCRS) {
//	    // Handle configuration error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTopologyUnreachable, cause, "trunk validation")
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the planner's error taxonomy.
const (
	// Configuration errors
	ErrCodeInvalidCRS    Code = "INVALID_CRS"
	ErrCodeInvalidMode   Code = "INVALID_MODE"
	ErrCodeInvalidOption Code = "INVALID_OPTION"
	ErrCodeInvalidInput  Code = "INVALID_INPUT"

	// Data-quality issues
	ErrCodeSparseStreets    Code = "DATA_SPARSE_STREETS"
	ErrCodeEmptyStreets     Code = "DATA_EMPTY_STREETS"
	ErrCodeNoBuildings      Code = "DATA_NO_BUILDINGS"
	ErrCodeNoAttachable     Code = "DATA_NO_ATTACHABLE_BUILDINGS"
	ErrCodeMissingField     Code = "DATA_MISSING_FIELD"
	ErrCodeDuplicateBuildID Code = "DATA_DUPLICATE_BUILDING_ID"

	// Topological invariant violations (fatal)
	ErrCodeTopologyUnreachable  Code = "TOPOLOGY_UNREACHABLE_BUILDING"
	ErrCodeTopologyDisconnected Code = "TOPOLOGY_DISCONNECTED_TRUNK"
	ErrCodeTopologyNoPlant      Code = "TOPOLOGY_NO_PLANT_NODE"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)

	// Detail carries machine-actionable context: which buildings, which
	// edges, which metric value vs. threshold. May be nil.
	Detail map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// WithDetail attaches a machine-actionable detail entry and returns e.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Detail == nil {
		e.Detail = map[string]any{}
	}
	e.Detail[key] = value
	return e
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// GetDetail extracts the detail map from an error, if available.
func GetDetail(err error) map[string]any {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return nil
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IsConfiguration reports whether the error is a configuration error
// (INVALID_* codes). Configuration errors mean the run never started.
func IsConfiguration(err error) bool {
	return hasPrefix(err, "INVALID_")
}

// IsDataQuality reports whether the error is a data-quality issue
// (DATA_* codes). These indicate a problem with the input geometry,
// not a defect in the planner.
func IsDataQuality(err error) bool {
	return hasPrefix(err, "DATA_")
}

// IsTopology reports whether the error is a topological invariant
// violation (TOPOLOGY_* codes). These are always fatal.
func IsTopology(err error) bool {
	return hasPrefix(err, "TOPOLOGY_")
}

func hasPrefix(err error, prefix string) bool {
	code := string(GetCode(err))
	return len(code) >= len(prefix) && code[:len(prefix)] == prefix
}
