// Package imagestore persists uploaded image bytes under collision-resistant
// storage keys. The interface is byte-blob in, byte-blob out so callers do not
// depend on the filesystem layout.
package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/autolabelhq/autolabel-go/internal/errors"
)

// Interface is the byte-blob persistence contract used by the ingestion
// pipeline and the media endpoint.
type Interface interface {
	Save(key string, data []byte) error
	Load(key string) ([]byte, error)
}

// FileStore implements Interface on a local directory.
type FileStore struct {
	root string
}

// NewFileStore creates the storage directory if needed and returns a store
// rooted at it.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.Newf("storage root must not be empty").
			Component("imagestore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Newf("creating storage directory %s: %w", root, err).
			Component("imagestore").
			Category(errors.CategoryFileIO).
			Build()
	}
	return &FileStore{root: root}, nil
}

// resolve maps a storage key to a path inside the root, rejecting keys that
// would escape it.
func (fs *FileStore) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "/") || strings.Contains(key, `\`) || strings.Contains(key, "..") {
		return "", errors.Newf("invalid storage key %q", key).
			Component("imagestore").
			Category(errors.CategoryValidation).
			Build()
	}
	return filepath.Join(fs.root, key), nil
}

// Save writes the image bytes under the given key.
func (fs *FileStore) Save(key string, data []byte) error {
	path, err := fs.resolve(key)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New(fmt.Errorf("writing image file: %w", err)).
			Component("imagestore").
			Category(errors.CategoryFileIO).
			Context("storage_key", key).
			Build()
	}
	return nil
}

// Load reads the image bytes stored under the given key.
func (fs *FileStore) Load(key string) ([]byte, error) {
	path, err := fs.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf("no stored image for key %q", key).
				Component("imagestore").
				Category(errors.CategoryNotFound).
				Build()
		}
		return nil, errors.New(fmt.Errorf("reading image file: %w", err)).
			Component("imagestore").
			Category(errors.CategoryFileIO).
			Context("storage_key", key).
			Build()
	}
	return data, nil
}
