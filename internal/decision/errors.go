package decision

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ppiankov/neurorouter"
)

// FormatError means the collaborator's response was not a valid
// decision variant. It cannot be safely reinterpreted, so it is never
// retried: the navigation stage fails immediately.
type FormatError struct {
	Raw    string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("decision not parseable: %s (response: %s)", e.Reason, snippet(e.Raw, 120))
}

// TransientError marks a failure that may succeed on retry.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps an error as retryable.
func NewTransientError(err error) error { return &TransientError{err: err} }

// FatalError marks a failure that retrying cannot fix.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError wraps an error as non-retryable.
func NewFatalError(err error) error { return &FatalError{err: err} }

// IsTransient reports whether the error should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether the error must not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// classifyHTTPStatus converts a non-200 response into a transient or
// fatal error. Rate limiting carries neurorouter.ErrRateLimited so
// callers can recognize it across wrapping.
func classifyHTTPStatus(statusCode int, body string) error {
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	err := fmt.Errorf("decision API error (status %d): %s", statusCode, body)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(fmt.Errorf("%w: %v", neurorouter.ErrRateLimited, err))
	case statusCode >= 500:
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden,
		statusCode == http.StatusBadRequest:
		return NewFatalError(err)
	default:
		return NewFatalError(err)
	}
}
