package services

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrUnsafePath = errors.New("storage key escapes the storage root")

// BlobStore keeps uploaded documents and rendered rasters. Keys are
// slash-separated paths relative to the store root.
type BlobStore interface {
	Save(dir, ext string, data []byte) (string, error)
	Read(key string) ([]byte, error)
	Delete(key string) error
}

// FileService is a BlobStore on the local filesystem.
type FileService struct {
	RootPath string
}

func NewFileService(rootPath string) (*FileService, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &FileService{RootPath: absRoot}, nil
}

// Save writes data under dir with a fresh uuid name and returns its key.
func (s *FileService) Save(dir, ext string, data []byte) (string, error) {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	key := path.Join(dir, uuid.NewString()+strings.ToLower(ext))
	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FileService) Read(key string) ([]byte, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

// Delete removes key. A key that is already gone is not an error.
func (s *FileService) Delete(key string) error {
	if key == "" {
		return nil
	}
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileService) resolve(key string) (string, error) {
	full := filepath.Join(s.RootPath, filepath.FromSlash(key))
	if !s.isPathSafe(full) {
		return "", ErrUnsafePath
	}
	return full, nil
}

// isPathSafe rejects paths outside the root (directory traversal).
func (s *FileService) isPathSafe(p string) bool {
	absPath, err := filepath.Abs(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(s.RootPath, absPath)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)
}
