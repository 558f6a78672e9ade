package index

import "errors"

var (
	// ErrAlreadyExists is returned by Register when the digest is already
	// present. The existing entry is left untouched.
	ErrAlreadyExists = errors.New("digest already registered")

	// ErrNotFound is returned by Lookup when the digest is not registered.
	ErrNotFound = errors.New("digest not registered")

	// ErrDigestMismatch is returned by Open when the index was created with a
	// different digest algorithm than the one requested.
	ErrDigestMismatch = errors.New("index digest algorithm mismatch")

	// ErrIndexNotFound is returned by Open when CreateIfNotExists is false and
	// there is no index file.
	ErrIndexNotFound = errors.New("index not found")
)
