package runner

import (
	"errors"
	"fmt"

	"github.com/petasbytes/fig2code/internal/extract"
)

var (
	// ErrMalformedResponse marks a reply whose first block is not text.
	ErrMalformedResponse = extract.ErrMalformedResponse
	// ErrRetriesExhausted is returned once every attempt has failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrStopped is returned when the policy declines to continue.
	ErrStopped = errors.New("stopped by policy")
)

// TransportError wraps a failed model invocation. It is fatal to the loop.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("model invocation: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// ExecutionError is a failure raised by generated code or by rendering its
// figure. Message is fed back to the model verbatim.
type ExecutionError struct {
	Message string
	Err     error
}

func (e *ExecutionError) Error() string { return e.Message }
func (e *ExecutionError) Unwrap() error { return e.Err }

func executionError(err error) *ExecutionError {
	return &ExecutionError{Message: err.Error(), Err: err}
}
