package search

import (
	"errors"
	"fmt"
)

// ErrPagination is matched by every *PaginationError.
var ErrPagination = errors.New("search pagination failed")

// maxErrorBody is how much of an error response is kept.
const maxErrorBody = 2048

// PaginationError describes a failed search request. It ends the term, not
// the run. StatusCode is zero when no usable HTTP response was received.
type PaginationError struct {
	Term       string
	Start      int
	StatusCode int
	Body       string
	Err        error
}

// Error implements error.
func (e *PaginationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search %q start=%d: status %d", e.Term, e.Start, e.StatusCode)
	}
	return fmt.Sprintf("search %q start=%d: %v", e.Term, e.Start, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PaginationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrPagination.
func (e *PaginationError) Is(target error) bool {
	return target == ErrPagination
}
