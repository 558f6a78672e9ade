package model

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// DigestSize is the length in bytes of every ContentDigest.
const DigestSize = 32

// ErrUnknownDigestAlgorithm is returned for unsupported digest algorithm names.
var ErrUnknownDigestAlgorithm = errors.New("unknown digest algorithm")

// ContentDigest is a 256-bit hash over the raw bytes of a fetched image.
// Two images with the same digest are the same image regardless of URL,
// classification or search term.
type ContentDigest [DigestSize]byte

// Hex returns the lowercase hexadecimal encoding of the digest.
func (d ContentDigest) Hex() string {
	return hex.EncodeToString(d[:])
}

// String implements fmt.Stringer.
func (d ContentDigest) String() string {
	return d.Hex()
}

// MarshalText renders the digest as hex in JSON and YAML output.
func (d ContentDigest) MarshalText() ([]byte, error) {
	return []byte(d.Hex()), nil
}

// Bytes returns the raw digest bytes, which are the hash index key.
func (d ContentDigest) Bytes() []byte {
	b := make([]byte, DigestSize)
	copy(b, d[:])
	return b
}

// IsZero reports whether the digest was never computed.
func (d ContentDigest) IsZero() bool {
	return d == ContentDigest{}
}

// DigestFromBytes converts raw index key bytes back to a ContentDigest.
func DigestFromBytes(b []byte) (ContentDigest, error) {
	var d ContentDigest
	if len(b) != DigestSize {
		return d, fmt.Errorf("digest must be %d bytes, got %d", DigestSize, len(b))
	}
	copy(d[:], b)
	return d, nil
}

// ParseDigest parses a hexadecimal digest as produced by Hex.
func ParseDigest(s string) (ContentDigest, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ContentDigest{}, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	return DigestFromBytes(b)
}

// DigestAlgorithm selects the hash function used to compute ContentDigests.
// An index is bound to one algorithm for its whole lifetime.
type DigestAlgorithm string

const (
	// DigestSHA256 is SHA-256, the default.
	DigestSHA256 DigestAlgorithm = "sha256"

	// DigestSHA3 is SHA3-256.
	DigestSHA3 DigestAlgorithm = "sha3-256"
)

// Validate reports whether the algorithm is supported.
func (a DigestAlgorithm) Validate() error {
	switch a {
	case DigestSHA256, DigestSHA3:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDigestAlgorithm, string(a))
	}
}

// Sum computes the digest of data. An empty algorithm means DigestSHA256.
func (a DigestAlgorithm) Sum(data []byte) ContentDigest {
	switch a {
	case DigestSHA3:
		return ContentDigest(sha3.Sum256(data))
	default:
		return ContentDigest(sha256.Sum256(data))
	}
}
