package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned when a stream exceeds the configured byte limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// ErrInvalidPath is returned for keys escaping the storage root.
var ErrInvalidPath = errors.New("invalid storage path")

// LocalStorage persists attachments on disk under a base directory. Keys are
// slash separated relative paths and never leave the base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: abs}, nil
}

// SaveStream copies at most limit bytes from r into key and returns the
// written size. A limit of zero disables the check. Partial files are removed.
func (s *LocalStorage) SaveStream(key string, r io.Reader, limit int64) (int64, error) {
	path, err := s.resolve(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return 0, fmt.Errorf("prepare storage directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, fmt.Errorf("create stored file: %w", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	written, copyErr := io.Copy(file, src)
	closeErr := file.Close()
	switch {
	case copyErr != nil:
		_ = os.Remove(path)
		return 0, fmt.Errorf("write stored file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(path)
		return 0, fmt.Errorf("close stored file: %w", closeErr)
	case limit > 0 && written > limit:
		_ = os.Remove(path)
		return 0, ErrTooLarge
	}
	return written, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(key string) (*os.File, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete stored file: %w", err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *LocalStorage) Exists(key string) bool {
	path, err := s.resolve(key)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(key)))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.baseDir, clean), nil
}
