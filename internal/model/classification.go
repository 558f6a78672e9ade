package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidClassification is returned when a classification label cannot be
// used as a bucket directory name.
var ErrInvalidClassification = errors.New("invalid classification")

// Classification names the output bucket an image belongs to (e.g. "ios",
// "android", "not_phone"). It is used verbatim as a directory name below the
// images directory, so it must be a single path segment.
type Classification string

// String returns the label.
func (c Classification) String() string {
	return string(c)
}

// Validate checks that the classification is usable as a directory name.
func (c Classification) Validate() error {
	s := string(c)
	switch {
	case strings.TrimSpace(s) == "":
		return fmt.Errorf("%w: empty label", ErrInvalidClassification)
	case s == "." || s == "..":
		return fmt.Errorf("%w: %q is not a directory name", ErrInvalidClassification, s)
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidClassification, s)
	case strings.ContainsRune(s, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidClassification, s)
	}
	return nil
}

// SearchTerm is a query string bound to exactly one classification.
// Several terms may feed the same classification; each one is traversed
// independently and in full before the next begins.
type SearchTerm struct {
	// Term is the search query sent as the q parameter.
	Term string `json:"term" yaml:"term"`

	// Classification is the bucket every image found by Term is stored in.
	Classification Classification `json:"classification" yaml:"classification"`
}

// String returns "classification/term" for logging.
func (t SearchTerm) String() string {
	return t.Classification.String() + "/" + t.Term
}
