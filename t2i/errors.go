package t2i

import (
	"context"
	"errors"
	"fmt"

	"t2i_backend/backends"
)

// Kind classifies a dispatch failure.
type Kind string

const (
	KindLeaseTimeout      Kind = "lease_timeout"
	KindInvalidOperation  Kind = "invalid_operation"
	KindGenerationFailed  Kind = "generation_failed"
	KindPersistenceFailed Kind = "persistence_failed"
	KindCanceled          Kind = "canceled"
)

// Error is the single terminal error of a dispatch call. Message is safe to
// show to clients; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Index   int
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError builds the client-facing message for kind.
func newError(kind Kind, index int, cause error) *Error {
	var msg string
	switch kind {
	case KindLeaseTimeout:
		msg = "Timeout! All backends are occupied with other tasks."
	case KindInvalidOperation:
		msg = "Invalid operation: " + causeText(cause)
	case KindPersistenceFailed:
		msg = "Server failed to save images."
	case KindCanceled:
		msg = "Request was canceled."
	default:
		msg = "Image generation failed: " + causeText(cause)
	}
	return &Error{Kind: kind, Message: msg, Index: index, Err: cause}
}

func causeText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// leaseError maps a failed lease to its kind.
func leaseError(index int, err error) *Error {
	switch {
	case errors.Is(err, backends.ErrLeaseTimeout):
		return newError(KindLeaseTimeout, index, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return newError(KindCanceled, index, err)
	default:
		return newError(KindInvalidOperation, index, err)
	}
}

// generationError maps a failed backend call to its kind.
func generationError(ctx context.Context, index int, err error) *Error {
	if ctx.Err() != nil {
		return newError(KindCanceled, index, err)
	}
	return newError(KindGenerationFailed, index, fmt.Errorf("task %d: %w", index, err))
}
