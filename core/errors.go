package core

import "fmt"

// TransportError reports that a provider or tool-server transport was
// unreachable or timed out. It is fatal to the current execution; retries are
// the adapter's responsibility.
type TransportError struct {
	Op  string // operation that failed, e.g. "provider.complete"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError wraps err as a TransportError for the given operation.
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}
