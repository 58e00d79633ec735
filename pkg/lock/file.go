package lock

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultFilePath is the marker file used when none is configured.
const DefaultFilePath = "system_lock.json"

// FileStore keeps the record in a JSON file shared by every process on the host.
type FileStore struct {
	path string
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileStore{path: path}
}

// Path returns the marker file path.
func (s *FileStore) Path() string {
	return s.path
}

// Create writes the record to a temporary file and hard-links it into place.
// The link fails if the marker exists, so readers never see a partial record.
func (s *FileStore) Create(_ context.Context, rec Record) (bool, error) {
	data, err := encodeRecord(rec)
	if err != nil {
		return false, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".lock-*.tmp")
	if err != nil {
		return false, fmt.Errorf("create temp marker: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, fmt.Errorf("write temp marker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("close temp marker: %w", err)
	}

	if err := os.Link(tmpPath, s.path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("link marker: %w", err)
	}
	return true, nil
}

// Load reads the marker file.
func (s *FileStore) Load(_ context.Context) (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read marker: %w", err)
	}
	return decodeRecord(data)
}

// Delete removes the marker file.
func (s *FileStore) Delete(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove marker: %w", err)
	}
	return nil
}
