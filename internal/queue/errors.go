package queue

import (
	"errors"
	"fmt"
)

// Common errors returned by queue implementations.
var (
	// ErrJobNotFound is returned when the queue has no job with the
	// requested id, either because it never existed or because retention
	// already pruned it.
	ErrJobNotFound = errors.New("job not found")

	// ErrQueueProcessing is returned when the queue backend rejected an
	// operation (network or storage failure on the backend itself). The
	// original cause is wrapped.
	ErrQueueProcessing = errors.New("queue processing failure")
)

// NewProcessingError wraps a backend failure in ErrQueueProcessing so
// callers can distinguish backend outages from missing jobs.
func NewProcessingError(operation string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrQueueProcessing, operation, err)
}
