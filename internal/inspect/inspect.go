package inspect

import (
	"errors"
	"fmt"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// ErrNoExif is returned when the data carries no EXIF block.
var ErrNoExif = errors.New("no EXIF data")

// DefaultTags are the EXIF tags kept by a default Inspector.
var DefaultTags = []string{
	"Make",
	"Model",
	"Software",
	"DateTimeOriginal",
	"LensModel",
}

// Inspector extracts a fixed set of EXIF tags from image bytes.
type Inspector struct {
	tags map[string]struct{}
}

// New returns an Inspector keeping tags, or DefaultTags when none are given.
func New(tags ...string) *Inspector {
	if len(tags) == 0 {
		tags = DefaultTags
	}
	keep := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		keep[t] = struct{}{}
	}
	return &Inspector{tags: keep}
}

// Inspect returns the kept tags found in data, keyed by tag name.
// The first occurrence of a tag wins (IFD0 before sub-IFDs).
func (i *Inspector) Inspect(data []byte) (map[string]string, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return nil, ErrNoExif
		}
		return nil, fmt.Errorf("failed to locate EXIF: %w", err)
	}
	if len(rawExif) == 0 {
		return nil, ErrNoExif
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EXIF: %w", err)
	}

	tags := make(map[string]string)
	for _, entry := range entries {
		if _, ok := i.tags[entry.TagName]; !ok {
			continue
		}
		if _, seen := tags[entry.TagName]; seen {
			continue
		}
		value := strings.TrimSpace(strings.TrimRight(entry.Formatted, "\x00"))
		if value == "" {
			continue
		}
		tags[entry.TagName] = value
	}
	return tags, nil
}
