package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals a request the caller must fix (empty query
	// and no image, malformed image payload). Never retried.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUpstreamUnavailable signals a failed or timed-out call to the
	// embedding provider, label detector, or document store.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrIndexingFailure signals that the document store rejected a batch.
	ErrIndexingFailure = errors.New("indexing failure")
	// ErrStoreUnavailable signals that the document store is unreachable.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
)

// IndexingError wraps ErrIndexingFailure with the batch offset at which
// the rebuild stopped, so a rerun can be diagnosed and resumed.
type IndexingError struct {
	Offset int
	Err    error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("%s at batch offset %d: %v", ErrIndexingFailure.Error(), e.Offset, e.Err)
}

func (e *IndexingError) Unwrap() error { return ErrIndexingFailure }

// NewIndexingError creates an indexing error for the given batch offset.
func NewIndexingError(offset int, err error) error {
	return &IndexingError{Offset: offset, Err: err}
}
