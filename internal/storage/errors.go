package storage

import "errors"

var (
	// ErrFileExists indicates the target file is already present.
	ErrFileExists = errors.New("file already exists")

	// ErrEmptyIdentifier indicates a write without a StoredIdentifier.
	ErrEmptyIdentifier = errors.New("empty stored identifier")
)
