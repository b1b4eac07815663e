package probeerrors

import (
	"context"

	"github.com/pkg/errors"
)

// Category is the coarse classification of an error that orchestrators base their retry and abort policies on.
type Category int

const (
	CategoryNone Category = iota
	CategoryUnknown
	CategoryCanceled
	CategoryDeadlineExceeded
	CategoryNetwork
	CategoryValidation
	CategoryResourceUpdate
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryCanceled:
		return "canceled"
	case CategoryDeadlineExceeded:
		return "deadline_exceeded"
	case CategoryNetwork:
		return "network"
	case CategoryValidation:
		return "validation"
	case CategoryResourceUpdate:
		return "resource_update"
	default:
		return "unknown"
	}
}

// CategoryFromError maps error types to categories.
// Uses errors.As to look through the chain of errors, as opposed to just considering the topmost error in the chain.
// Cancellation wins over anything else found in the chain.
func CategoryFromError(err error) Category {
	if err == nil {
		return CategoryNone
	}

	// Using {} scopes just to re-use the "e" variable name for each case.
	{
		var e *ErrCanceled
		if errors.As(err, &e) {
			return CategoryCanceled
		}
	}
	{
		var e *ErrDeadlineExceeded
		if errors.As(err, &e) {
			return CategoryDeadlineExceeded
		}
	}

	// Raw errors from the standard library, e.g., returned by an http.Client.
	if errors.Is(err, context.Canceled) {
		return CategoryCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryDeadlineExceeded
	}

	{
		var e *ErrValidation
		if errors.As(err, &e) {
			return CategoryValidation
		}
	}
	{
		var e *ErrResourceUpdate
		if errors.As(err, &e) {
			return CategoryResourceUpdate
		}
	}
	{
		var e *ErrNetwork
		if errors.As(err, &e) {
			return CategoryNetwork
		}
	}

	return CategoryUnknown
}

// IsCancellation returns true if err means the caller's context ended.
func IsCancellation(err error) bool {
	c := CategoryFromError(err)
	return c == CategoryCanceled || c == CategoryDeadlineExceeded
}

// IsRetryable returns true for errors a caller may retry. Only network errors qualify.
func IsRetryable(err error) bool {
	return CategoryFromError(err) == CategoryNetwork
}
