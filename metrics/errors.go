package metrics

import (
	"errors"
	"fmt"
)

// ErrorCode classifies engine failures. All are recoverable at the caller:
// the computation is deterministic, so retrying the same request yields the
// same error.
type ErrorCode string

const (
	// ErrInvalidRequest marks an unknown metric, malformed time period, or
	// unsupported grouping dimension.
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrEmptyResult marks a time filter that matched zero records. The
	// engine never reports an empty window as a silent zero.
	ErrEmptyResult ErrorCode = "EMPTY_RESULT"
	// ErrDivisionUndefined marks a growth-rate request whose baseline
	// period has zero revenue.
	ErrDivisionUndefined ErrorCode = "DIVISION_UNDEFINED"
)

// Error is a structured engine error.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// NewError creates an engine error with the given code.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the engine error code, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err is an engine error with the given code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
