package transfer

import (
	"errors"
	"fmt"

	"github.com/DemandBridge/environment-transfer-tool/pkg/resource"
)

var (
	// ErrNotFound means the item does not exist on the environment asked.
	ErrNotFound = errors.New("item not found")

	// ErrAlreadyExists means the destination already holds an item with the
	// same identifier. The item counts as transferred.
	ErrAlreadyExists = errors.New("item already exists on destination")

	// ErrPreviewToggle aborts a whole batch.
	ErrPreviewToggle = errors.New("failed to disable automatic preview generation")
)

// TransportError is a non-success response from a remote API.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// VerificationError means an upload completed but the destination does not
// hold what was sent.
type VerificationError struct {
	Unit     resource.Unit
	Attempts int
	Reason   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification of %s failed after %d attempt(s): %s", e.Unit, e.Attempts, e.Reason)
}
