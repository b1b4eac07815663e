// Package probeerrors contains the errors returned by operations against the measurement engine
// and the probe services backend.
//
// Errors fall into two families. Cancellation errors (ErrCanceled, ErrDeadlineExceeded) mean the
// caller's context ended; callers should never retry them. Operational errors (ErrNetwork,
// ErrValidation, ErrResourceUpdate) describe what went wrong with the operation itself. Use
// CategoryFromError to classify an arbitrary error chain rather than type-switching on the top
// of the chain.
//
// If several errors occur in a single function, that function should return a
// multierror.Error from github.com/hashicorp/go-multierror wrapping the individual errors.
package probeerrors

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// ErrCanceled is returned when the context of an operation was canceled before or while it ran.
type ErrCanceled struct {
	// Operation that was interrupted, e.g., "submit"
	Op string
}

func (err *ErrCanceled) Error() string {
	if err.Op == "" {
		return "operation canceled"
	}
	return fmt.Sprintf("%s: operation canceled", err.Op)
}

func (err *ErrCanceled) Unwrap() error {
	return context.Canceled
}

// ErrDeadlineExceeded is returned when the deadline of an operation's context expired.
type ErrDeadlineExceeded struct {
	Op string
}

func (err *ErrDeadlineExceeded) Error() string {
	if err.Op == "" {
		return "deadline exceeded"
	}
	return fmt.Sprintf("%s: deadline exceeded", err.Op)
}

func (err *ErrDeadlineExceeded) Unwrap() error {
	return context.DeadlineExceeded
}

// ErrNetwork indicates that talking to a remote endpoint failed. These are the only errors worth retrying.
type ErrNetwork struct {
	Op       string // Operation, e.g., "check-in"
	Endpoint string // Optional, the URL or address contacted
	Message  string // Optional, e.g., "unexpected status 502"
	Err      error  // Optional underlying error
}

func (err *ErrNetwork) Error() (s string) {
	s = fmt.Sprintf("%s: network error", err.Op)
	if err.Endpoint != "" {
		s = s + fmt.Sprintf(" talking to %s", err.Endpoint)
	}
	if err.Message != "" {
		s = s + fmt.Sprintf("; %s", err.Message)
	}
	if err.Err != nil {
		s = s + fmt.Sprintf(": %s", err.Err)
	}
	return
}

func (err *ErrNetwork) Unwrap() error {
	return err.Err
}

// ErrValidation is returned on an invalid argument, e.g., a measurement that isn't valid JSON.
// Message is optional and is omitted from the error message if not provided.
type ErrValidation struct {
	Name    string      // Name of the field referred to, e.g., "measurement"
	Value   interface{} // The invalid value that was provided
	Message string      // An optional message explaining why the value is invalid
}

func (err *ErrValidation) Error() string {
	if err.Message == "" {
		return fmt.Sprintf("value %q is invalid for field %q", err.Value, err.Name)
	} else {
		return fmt.Sprintf("value %q is invalid for field %q; %s", err.Value, err.Name, err.Message)
	}
}

// ErrResourceUpdate is returned when refreshing cached engine resources failed.
// The previous resources remain usable, so callers should log this and carry on.
type ErrResourceUpdate struct {
	Resource string
	Err      error
}

func (err *ErrResourceUpdate) Error() string {
	if err.Err == nil {
		return fmt.Sprintf("failed to update resource %q", err.Resource)
	}
	return fmt.Sprintf("failed to update resource %q: %s", err.Resource, err.Err)
}

func (err *ErrResourceUpdate) Unwrap() error {
	return err.Err
}

// FromContext returns nil if ctx is still live, and otherwise the cancellation error matching ctx.Err().
// Operations call it before every call into the engine or the backend.
func FromContext(ctx context.Context, op string) error {
	switch ctx.Err() {
	case nil:
		return nil
	case context.DeadlineExceeded:
		return errors.WithStack(&ErrDeadlineExceeded{Op: op})
	default:
		return errors.WithStack(&ErrCanceled{Op: op})
	}
}
