package contenttree

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrContentNotFound indicates a content was not found
	ErrContentNotFound = errors.New("content not found")

	// ErrParentNotFound indicates the requested parent does not exist or is deleted
	ErrParentNotFound = errors.New("parent content not found")

	// ErrRecordNotFound is returned by stores when no record matches
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvariantViolation indicates malformed hierarchy input; a programming error
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrStoreFailure indicates the underlying store operation failed
	ErrStoreFailure = errors.New("store failure")
)

// ContentError represents an error related to content operations
type ContentError struct {
	ContentID string
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// storeErr tags a store error so callers can match ErrStoreFailure, unless the
// store reported a plain miss.
func storeErr(id, op string, err error) error {
	if errors.Is(err, ErrRecordNotFound) {
		return &ContentError{ContentID: id, Op: op, Err: err}
	}
	return &ContentError{ContentID: id, Op: op, Err: fmt.Errorf("%w: %w", ErrStoreFailure, err)}
}

// IsNotFound reports whether err means the referenced content is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContentNotFound) || errors.Is(err, ErrParentNotFound) || errors.Is(err, ErrRecordNotFound)
}
