package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nao1215/imagecrawl/internal/model"
)

const (
	dirPerm  = 0750
	filePerm = 0640

	// tempPrefix marks in-progress writes. Walk skips these.
	tempPrefix = ".tmp-"
)

// ImageStore writes images to <root>/<classification>/<identifier>.
type ImageStore struct {
	root string
}

// NewImageStore returns a store rooted at dir. The directory is created
// lazily on first write.
func NewImageStore(dir string) *ImageStore {
	return &ImageStore{root: dir}
}

// Root returns the store's root directory.
func (s *ImageStore) Root() string {
	return s.root
}

// Path returns the file path for an image without touching the filesystem.
func (s *ImageStore) Path(class model.Classification, id model.StoredIdentifier) string {
	return filepath.Join(s.root, class.String(), id.String())
}

// Write stores data as <root>/<class>/<id> and returns the path.
// Write fails with ErrFileExists rather than replacing an existing file.
func (s *ImageStore) Write(class model.Classification, id model.StoredIdentifier, data []byte) (string, error) {
	if err := class.Validate(); err != nil {
		return "", err
	}
	if id.IsZero() {
		return "", ErrEmptyIdentifier
	}

	dir := filepath.Join(s.root, class.String())
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("failed to create bucket %s: %w", class, err)
	}

	target := filepath.Join(dir, id.String())
	tmp, err := os.CreateTemp(dir, tempPrefix+id.String()+"-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) } //nolint:errcheck // best effort

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("failed to sync image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to close image: %w", err)
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to set image permissions: %w", err)
	}

	// os.Link fails if target exists, unlike os.Rename.
	if err := os.Link(tmpName, target); err != nil {
		cleanup()
		if errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrFileExists, target)
		}
		return "", fmt.Errorf("failed to place image: %w", err)
	}
	cleanup()
	return target, nil
}

// Remove deletes the image file. A missing file is not an error.
func (s *ImageStore) Remove(class model.Classification, id model.StoredIdentifier) error {
	err := os.Remove(s.Path(class, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

// Exists reports whether the image file is present.
func (s *ImageStore) Exists(class model.Classification, id model.StoredIdentifier) (bool, error) {
	_, err := os.Stat(s.Path(class, id))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Entry is one file found by Walk.
type Entry struct {
	Classification model.Classification
	Identifier     model.StoredIdentifier
	Path           string
	Size           int64
}

// Walk calls fn for every image file in every bucket. Files whose names are
// not identifiers (including in-progress temp files) are skipped. A missing
// root is treated as empty.
func (s *ImageStore) Walk(fn func(Entry) error) error {
	buckets, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read image root: %w", err)
	}

	for _, bucket := range buckets {
		if !bucket.IsDir() {
			continue
		}
		class := model.Classification(bucket.Name())
		files, err := os.ReadDir(filepath.Join(s.root, bucket.Name()))
		if err != nil {
			return fmt.Errorf("failed to read bucket %s: %w", class, err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			id, err := model.ParseStoredIdentifier(f.Name())
			if err != nil {
				continue
			}
			info, err := f.Info()
			if err != nil {
				return fmt.Errorf("failed to stat %s: %w", f.Name(), err)
			}
			entry := Entry{
				Classification: class,
				Identifier:     id,
				Path:           filepath.Join(s.root, bucket.Name(), f.Name()),
				Size:           info.Size(),
			}
			if err := fn(entry); err != nil {
				return err
			}
		}
	}
	return nil
}
