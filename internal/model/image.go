package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Candidate is one search result: a direct image link plus a thumbnail link
// to try when the direct link cannot be fetched. Candidates are never
// persisted; the Deduplicator consumes them immediately.
type Candidate struct {
	PrimaryURL  string `json:"primary_url"`
	FallbackURL string `json:"fallback_url,omitempty"`
}

// StoredIdentifier is the opaque, random token used as an image's filename.
// It carries no meaning and is never reused.
type StoredIdentifier uuid.UUID

// NewStoredIdentifier returns a fresh random (version 4) identifier.
func NewStoredIdentifier() (StoredIdentifier, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return StoredIdentifier{}, fmt.Errorf("failed to generate identifier: %w", err)
	}
	return StoredIdentifier(id), nil
}

// ParseStoredIdentifier parses the canonical string form (a filename).
func ParseStoredIdentifier(s string) (StoredIdentifier, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return StoredIdentifier{}, err
	}
	return StoredIdentifier(id), nil
}

// IdentifierFromBytes converts the 16 raw index value bytes to an identifier.
func IdentifierFromBytes(b []byte) (StoredIdentifier, error) {
	id, err := uuid.FromBytes(b)
	if err != nil {
		return StoredIdentifier{}, err
	}
	return StoredIdentifier(id), nil
}

// String returns the canonical form used as the on-disk filename.
func (id StoredIdentifier) String() string {
	return uuid.UUID(id).String()
}

// MarshalText renders the identifier in canonical form.
func (id StoredIdentifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// Bytes returns the 16 raw bytes stored as the hash index value.
func (id StoredIdentifier) Bytes() []byte {
	b := make([]byte, 16)
	copy(b, id[:])
	return b
}

// IsZero reports whether the identifier is unset.
func (id StoredIdentifier) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// StoredImage ties a content digest to the file that holds its bytes.
// A digest maps to at most one StoredImage for the lifetime of the index.
type StoredImage struct {
	Digest         ContentDigest    `json:"digest"`
	Identifier     StoredIdentifier `json:"identifier"`
	Classification Classification   `json:"classification"`

	// SourceURL is the URL the bytes were actually fetched from
	// (primary or fallback).
	SourceURL string `json:"source_url,omitempty"`

	// Size is the number of bytes written.
	Size int64 `json:"size"`

	// StoredAt is when the image was registered.
	StoredAt time.Time `json:"stored_at"`
}

// Outcome is the result of processing one candidate.
type Outcome int

const (
	// OutcomeFailed means neither URL could be fetched, or storage failed.
	// Nothing was written.
	OutcomeFailed Outcome = iota

	// OutcomeStored means the content was new and has been stored and registered.
	OutcomeStored

	// OutcomeDuplicate means the content digest was already registered.
	OutcomeDuplicate
)

// String returns a lowercase label suitable for logs and metric labels.
func (o Outcome) String() string {
	switch o {
	case OutcomeStored:
		return "stored"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}
