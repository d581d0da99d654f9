package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
)

// ErrNotFound is returned when no blob has been saved under a name.
var ErrNotFound = errors.New("blob not found")

// BlobStore persists opaque named documents.
type BlobStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
}

// FileStore keeps each blob in its own JSON file under basePath. Writes go
// through a temp file and rename, so readers never see a partial document.
type FileStore struct {
	basePath string
}

// NewFileStore creates a new FileStore and ensures the base directory exists.
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	return &FileStore{basePath: basePath}, nil
}

// sanitizeName makes the blob name safe for filenames.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.':
			return '_'
		}
		return r
	}, name)
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.basePath, sanitizeName(name)+".json")
}

// Save atomically replaces the blob.
func (s *FileStore) Save(_ context.Context, name string, data []byte) error {
	if err := atomic.WriteFile(s.path(name), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write blob %s: %w", name, err)
	}
	return nil
}

// Load returns the blob or ErrNotFound.
func (s *FileStore) Load(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", name, err)
	}
	return data, nil
}
