package dedup

import (
	"errors"
	"fmt"

	"github.com/nao1215/imagecrawl/internal/model"
)

// ErrStorage is matched by every *StorageError.
var ErrStorage = errors.New("storage failed")

// StorageError describes a failure to write an image or consult the index.
type StorageError struct {
	URL        string
	Digest     model.ContentDigest
	Identifier model.StoredIdentifier
	Err        error
}

// Error implements error.
func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s (digest %s): %v", e.URL, e.Digest.Hex(), e.Err)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
