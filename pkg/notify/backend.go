package notify

import (
	"context"
	"fmt"
)

// Backend delivers messages to one destination.
type Backend interface {
	// Name returns the backend identifier.
	Name() string

	// Handle delivers a message.
	Handle(ctx context.Context, msg *Message) error
}

// BackendError is an error from a specific backend.
type BackendError struct {
	Backend   string
	Operation string
	Retryable bool
	Err       error
}

func (e *BackendError) Error() string {
	retryability := "permanent"
	if e.Retryable {
		retryability = "retryable"
	}
	return fmt.Sprintf("%s backend error (%s, %s): %v", e.Backend, e.Operation, retryability, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError creates a new backend error.
func NewBackendError(backend, operation string, retryable bool, err error) *BackendError {
	return &BackendError{
		Backend:   backend,
		Operation: operation,
		Retryable: retryable,
		Err:       err,
	}
}

// isRetryableHTTPStatus reports whether a failed delivery may succeed later.
func isRetryableHTTPStatus(status int) bool {
	switch {
	case status >= 500:
		return true
	case status == 429, status == 408:
		return true
	default:
		return false
	}
}
