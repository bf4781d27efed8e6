// Package exception provides the structured error type used across the
// governance core. Every failure surfaced to a caller carries a Kind from a
// closed taxonomy plus a human-readable message, so the boundary layer can
// render it without knowledge of internal states.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// Kind classifies an error for callers.
type Kind string

const (
	// KindValidation indicates malformed input; the caller must correct and resubmit.
	KindValidation Kind = "validation"
	// KindNotFound indicates an unknown id.
	KindNotFound Kind = "not_found"
	// KindInvalidState indicates an operation not legal in the current state machine state.
	KindInvalidState Kind = "invalid_state"
	// KindDuplicateApproval indicates a second PENDING approval was submitted for a job.
	KindDuplicateApproval Kind = "duplicate_approval"
	// KindRuleApplication indicates a transformation rule failed to apply.
	KindRuleApplication Kind = "rule_application"
	// KindSourceNotFound indicates a source id did not resolve to an active data source.
	KindSourceNotFound Kind = "source_not_found"
	// KindAlreadyResolved indicates a resolve call against an already-resolved exception.
	KindAlreadyResolved Kind = "already_resolved"
	// KindInternal is the fallback for unclassified failures.
	KindInternal Kind = "internal"
)

// GovernError is the error type produced by the governance core.
// It records the module where the error occurred, a concise message,
// the wrapped original error, and the stack at creation time.
type GovernError struct {
	Kind        Kind
	Module      string
	Message     string
	OriginalErr error
	StackTrace  string
}

// New creates a new GovernError instance.
func New(kind Kind, module, message string, originalErr error) *GovernError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &GovernError{
		Kind:        kind,
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  string(buf[:n]),
	}
}

// Newf creates a new GovernError with a formatted message. If the final
// argument is an error it is extracted and wrapped as the original error.
func Newf(kind Kind, module, format string, a ...interface{}) *GovernError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return New(kind, module, fmt.Sprintf(format, args...), originalErr)
}

// Error implements the error interface.
func (e *GovernError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *GovernError) Unwrap() error {
	return e.OriginalErr
}

// kinder is implemented by error types that carry their own Kind
// (e.g. rule.ApplicationError).
type kinder interface {
	GovernKind() Kind
}

// GovernKind lets GovernError satisfy the kinder interface itself, so
// KindOf treats wrapped and direct instances uniformly.
func (e *GovernError) GovernKind() Kind {
	return e.Kind
}

// KindOf walks the error chain and returns the first Kind found.
// Unclassified errors report KindInternal; nil reports an empty Kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for current := err; current != nil; current = errors.Unwrap(current) {
		if k, ok := current.(kinder); ok {
			return k.GovernKind()
		}
	}
	return KindInternal
}

// IsKind reports whether any error in the chain carries the given Kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	for current := err; current != nil; current = errors.Unwrap(current) {
		if k, ok := current.(kinder); ok && k.GovernKind() == kind {
			return true
		}
	}
	return false
}

// ExtractErrorMessage extracts the message string from an error.
// For GovernError it returns the cleaner Message field; otherwise the
// standard Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var ge *GovernError
	if errors.As(err, &ge) {
		return ge.Message
	}
	return err.Error()
}
