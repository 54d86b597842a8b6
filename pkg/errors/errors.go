// Package errors provides structured error handling for the view tree engine.
//
// Producer-side mistakes (unknown tags, malformed child edits) are returned to
// the caller as *ViewError values. Internal invariant failures go through
// Assert, which panics in debug mode and reports otherwise.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindNotFound indicates an operation referenced an unknown tag.
	KindNotFound
	// KindIllegalOperation indicates a structurally invalid edit.
	KindIllegalOperation
	// KindInconsistentState indicates an internal invariant failed.
	KindInconsistentState
	// KindRetryableMount indicates an imperative call targeted a view that is not mounted yet.
	KindRetryableMount
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindIllegalOperation:
		return "illegal-operation"
	case KindInconsistentState:
		return "inconsistent-state"
	case KindRetryableMount:
		return "retryable-mount"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

// Sentinel errors matched by errors.Is against any *ViewError of the same kind.
var (
	ErrNotFound          = stderrors.New("view not found")
	ErrIllegalOperation  = stderrors.New("illegal view operation")
	ErrInconsistentState = stderrors.New("inconsistent view hierarchy")
	ErrRetryableMount    = stderrors.New("view not mounted")
)

// NoTag marks a ViewError that is not about a specific tag.
const NoTag = -1

// ViewError represents a structured error raised while editing or mutating
// the view hierarchy.
type ViewError struct {
	// Op is the operation that failed (e.g., "uimanager.ManageChildren").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Tag is the tag the operation referenced, or NoTag.
	Tag int
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *ViewError) Error() string {
	if e.Tag != NoTag {
		return fmt.Sprintf("%s [%s] tag=%d: %v", e.Op, e.Kind, e.Tag, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *ViewError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *ViewError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrIllegalOperation:
		return e.Kind == KindIllegalOperation
	case ErrInconsistentState:
		return e.Kind == KindInconsistentState
	case ErrRetryableMount:
		return e.Kind == KindRetryableMount
	}
	return false
}

func newError(op string, kind ErrorKind, tag int, format string, args ...any) *ViewError {
	return &ViewError{
		Op:        op,
		Kind:      kind,
		Tag:       tag,
		Err:       fmt.Errorf(format, args...),
		Timestamp: time.Now(),
	}
}

// NotFound returns a KindNotFound error for tag.
func NotFound(op string, tag int) *ViewError {
	return newError(op, KindNotFound, tag, "no view with tag %d", tag)
}

// IllegalOperation returns a KindIllegalOperation error.
func IllegalOperation(op string, tag int, format string, args ...any) *ViewError {
	return newError(op, KindIllegalOperation, tag, format, args...)
}

// Inconsistent returns a KindInconsistentState error.
func Inconsistent(op string, tag int, format string, args ...any) *ViewError {
	return newError(op, KindInconsistentState, tag, format, args...)
}

// RetryableMount returns a KindRetryableMount error for tag.
func RetryableMount(op string, tag int, format string, args ...any) *ViewError {
	return newError(op, KindRetryableMount, tag, format, args...)
}

// IsRetryable reports whether err is a KindRetryableMount error.
func IsRetryable(err error) bool {
	return stderrors.Is(err, ErrRetryableMount)
}

// KindOf returns the kind of the first *ViewError in err's chain.
func KindOf(err error) ErrorKind {
	var ve *ViewError
	if stderrors.As(err, &ve) {
		return ve.Kind
	}
	return KindUnknown
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "queue.flushPendingBatches").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// AssertionError is raised by Assert when debug mode is on.
type AssertionError struct {
	*ViewError
	// Dump is a diagnostic rendering of the tree at the time of the failure.
	Dump string
}

func (e *AssertionError) Error() string {
	if e.Dump == "" {
		return e.ViewError.Error()
	}
	return e.ViewError.Error() + "\n" + e.Dump
}

// ErrorHandler receives errors reported by the engine.
type ErrorHandler interface {
	// HandleError is called when an error is reported instead of returned.
	HandleError(err *ViewError)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
