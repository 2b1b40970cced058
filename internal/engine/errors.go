package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/seanode/internal/ir"
)

// CompilationError reports why a compilation unit was abandoned.
//
// A CompilationError never affects other units: CompileAll records it in
// the unit's outcome and keeps going.
type CompilationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Unit is the ID of the affected compilation unit.
	Unit string

	// NodeID is the node being processed when the error occurred, or 0.
	NodeID ir.NodeID

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes compilation errors.
type ErrorCode string

const (
	// ErrCodeStampConflict indicates a stamp refinement left no possible value.
	ErrCodeStampConflict ErrorCode = "STAMP_CONFLICT"

	// ErrCodeUnsupportedInput indicates operands a rule cannot accept.
	ErrCodeUnsupportedInput ErrorCode = "UNSUPPORTED_INPUT"

	// ErrCodeQuotaExceeded indicates the unit exceeded its rewrite quota.
	ErrCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"

	// ErrCodeCancelled indicates the context was cancelled mid-unit.
	ErrCodeCancelled ErrorCode = "CANCELLED"

	// ErrCodeJournal indicates the rewrite journal rejected a record.
	ErrCodeJournal ErrorCode = "JOURNAL"
)

// Error implements the error interface.
func (e *CompilationError) Error() string {
	switch {
	case e.Unit != "" && e.NodeID != 0:
		return fmt.Sprintf("%s: %s (unit=%s, node=v%d)", e.Code, e.Message, e.Unit, e.NodeID)
	case e.Unit != "":
		return fmt.Sprintf("%s: %s (unit=%s)", e.Code, e.Message, e.Unit)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap returns the underlying cause.
func (e *CompilationError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var ce *CompilationError
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsStampConflict reports whether err is a stamp conflict.
func IsStampConflict(err error) bool {
	return hasCode(err, ErrCodeStampConflict)
}

// IsUnsupportedInput reports whether err is an unsupported-input fault.
func IsUnsupportedInput(err error) bool {
	return hasCode(err, ErrCodeUnsupportedInput)
}

// IsQuotaError reports whether err is a quota error. Matches both a
// CompilationError with ErrCodeQuotaExceeded and a bare RewritesExceededError.
func IsQuotaError(err error) bool {
	if hasCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var re *RewritesExceededError
	return errors.As(err, &re)
}

// IsCancelled reports whether err reports a cancelled unit.
func IsCancelled(err error) bool {
	return hasCode(err, ErrCodeCancelled)
}

func newCompilationError(code ErrorCode, unit string, id ir.NodeID, err error) *CompilationError {
	return &CompilationError{
		Code:    code,
		Message: err.Error(),
		Unit:    unit,
		NodeID:  id,
		Err:     err,
	}
}
