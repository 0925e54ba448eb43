package compiler

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes compilation problems.
type ErrorCode string

const (
	// ErrCodeUnresolvedSource indicates a formula referenced a channel or
	// joint that could not be resolved. The term is dropped; the import
	// continues.
	ErrCodeUnresolvedSource ErrorCode = "UNRESOLVED_SOURCE"

	// ErrCodeExpressionOverflow indicates a SumNode or spline could not fit
	// the size ceilings. Fatal for that target only; its previous driver is
	// left untouched.
	ErrCodeExpressionOverflow ErrorCode = "EXPRESSION_OVERFLOW"

	// ErrCodeDependencyCycle indicates a joint was driven by one of its own
	// descendants. Resolved structurally; not fatal.
	ErrCodeDependencyCycle ErrorCode = "DEPENDENCY_CYCLE"

	// ErrCodeRecoveryAmbiguous indicates an attached driver could not be
	// decomposed into terms and was preserved as an opaque remainder.
	ErrCodeRecoveryAmbiguous ErrorCode = "RECOVERY_AMBIGUOUS"
)

// Error is a per-target compilation problem.
//
// Error includes structured fields for diagnostics and the session report.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode `json:"code"`

	// Target is the key of the affected target, if any.
	Target string `json:"target,omitempty"`

	// Terms is the number of terms the target had when the error occurred.
	Terms int `json:"terms,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Err is the underlying cause, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Target != "" {
		return fmt.Sprintf("%s: %s (target=%s, terms=%d)", e.Code, msg, e.Target, e.Terms)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Fatal reports whether the error prevented a target from compiling.
func (e *Error) Fatal() bool {
	return e.Code == ErrCodeExpressionOverflow
}

// IsOverflowError returns true if err is an expression overflow.
// Uses errors.As to handle wrapped errors.
func IsOverflowError(err error) bool {
	return hasCode(err, ErrCodeExpressionOverflow)
}

// IsUnresolvedError returns true if err is an unresolved source.
func IsUnresolvedError(err error) bool {
	return hasCode(err, ErrCodeUnresolvedSource)
}

// IsCycleError returns true if err reports a dependency cycle.
func IsCycleError(err error) bool {
	return hasCode(err, ErrCodeDependencyCycle)
}

func hasCode(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// NewOverflowError creates an Error for an expression that cannot fit the ceilings.
func NewOverflowError(target string, terms int, message string) *Error {
	return &Error{
		Code:    ErrCodeExpressionOverflow,
		Target:  target,
		Terms:   terms,
		Message: message,
	}
}

// NewUnresolvedError creates an Error for a reference that cannot be resolved.
func NewUnresolvedError(ref string, err error) *Error {
	return &Error{
		Code:    ErrCodeUnresolvedSource,
		Message: fmt.Sprintf("cannot resolve %q", ref),
		Err:     err,
	}
}
