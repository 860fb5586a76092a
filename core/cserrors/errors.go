// Package cserrors implements the error taxonomy used across the codebase
// search engine: a small set of sentinel errors distinguished by Kind, each
// wrapping the underlying cause with structured context.
package cserrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy's categories. Kind does
// not replace Go's error wrapping; callers should still use errors.Is/As
// against the sentinel vars below.
type Kind int

const (
	// KindIO covers filesystem or database I/O failures.
	KindIO Kind = iota

	// KindDimensionMismatch indicates a vector's length disagrees with the
	// configured embedding dimension.
	KindDimensionMismatch

	// KindDuplicateID indicates an attempt to add a document id that
	// already exists.
	KindDuplicateID

	// KindIndexCorruption indicates a store or vector snapshot failed
	// validation on load.
	KindIndexCorruption

	// KindProviderError indicates an embedding provider call failed.
	KindProviderError

	// KindCancelled indicates cooperative cancellation; not an error
	// condition for callers who requested it.
	KindCancelled

	// KindConfigError indicates invalid configuration.
	KindConfigError
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "IoError"
	case KindDimensionMismatch:
		return "DimensionMismatch"
	case KindDuplicateID:
		return "DuplicateId"
	case KindIndexCorruption:
		return "IndexCorruption"
	case KindProviderError:
		return "ProviderError"
	case KindCancelled:
		return "Cancelled"
	case KindConfigError:
		return "ConfigError"
	default:
		return "Unknown"
	}
}

// Sentinel errors. Use errors.Is to check against these regardless of the
// wrapping Error's context fields.
var (
	ErrIO                = errors.New("io error")
	ErrDimensionMismatch  = errors.New("dimension mismatch")
	ErrDuplicateID        = errors.New("duplicate document id")
	ErrIndexCorruption    = errors.New("index corruption")
	ErrProvider           = errors.New("embedding provider error")
	ErrCancelled          = errors.New("operation cancelled")
	ErrConfig             = errors.New("invalid configuration")
)

var sentinels = map[Kind]error{
	KindIO:                ErrIO,
	KindDimensionMismatch: ErrDimensionMismatch,
	KindDuplicateID:       ErrDuplicateID,
	KindIndexCorruption:   ErrIndexCorruption,
	KindProviderError:     ErrProvider,
	KindCancelled:         ErrCancelled,
	KindConfigError:       ErrConfig,
}

// Error is a structured error carrying a Kind, the operation that failed,
// optional path/term context, and the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Term string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, sentinels[e.Kind])
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Term != "" {
		msg += fmt.Sprintf(" (term=%s)", e.Term)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return sentinels[e.Kind]
}

// Is allows errors.Is(err, cserrors.ErrIO) to match an *Error of KindIO even
// though *Error itself is not ErrIO.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// New constructs a structured *Error for the given kind and operation.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithPath attaches path context to the error and returns it for chaining.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// WithTerm attaches term context to the error and returns it for chaining.
func (e *Error) WithTerm(term string) *Error {
	e.Term = term
	return e
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ok=true.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
