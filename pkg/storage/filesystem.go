package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Read when the file does not exist.
var ErrNotFound = errors.New("storage: file not found")

// LocalStorage persists files on disk under a base directory.
type LocalStorage struct {
	baseDir  string
	dirMode  os.FileMode
	fileMode os.FileMode
	lazy     bool
}

// Option customises LocalStorage.
type Option func(*LocalStorage)

// WithModes overrides the directory and file permissions.
func WithModes(dir, file os.FileMode) Option {
	return func(s *LocalStorage) {
		s.dirMode = dir
		s.fileMode = file
	}
}

// Private restricts access to the current user, for secrets.
func Private() Option {
	return WithModes(0o700, 0o600)
}

// Lazy defers creating the base directory until the first Save.
func Lazy() Option {
	return func(s *LocalStorage) {
		s.lazy = true
	}
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string, opts ...Option) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./exports"
	}
	s := &LocalStorage{baseDir: baseDir, dirMode: 0o755, fileMode: 0o644}
	for _, opt := range opts {
		opt(s)
	}
	if s.lazy {
		return s, nil
	}
	if err := os.MkdirAll(baseDir, s.dirMode); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return s, nil
}

// Save writes data to the relative path under the base dir, replacing any
// previous content atomically.
func (s *LocalStorage) Save(filename string, data []byte) (string, error) {
	path := s.resolve(filename)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return "", fmt.Errorf("prepare storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Chmod(s.fileMode); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("chmod file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("replace file: %w", err)
	}
	return filename, nil
}

// Read returns the stored bytes, or ErrNotFound.
func (s *LocalStorage) Read(filename string) ([]byte, error) {
	data, err := os.ReadFile(s.resolve(filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(filename string) error {
	path := s.resolve(filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// Path exposes the underlying path.
func (s *LocalStorage) Path(filename string) string {
	return s.resolve(filename)
}

func (s *LocalStorage) resolve(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(s.baseDir, filename)
}
