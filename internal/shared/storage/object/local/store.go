package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"docflow-backend/internal/shared/apperr"
	"docflow-backend/internal/shared/storage/object"
)

// Store implements ObjectStore using the local filesystem.
type Store struct {
	root string
}

// New creates a local object store rooted at baseDir. The root is made absolute
// so Save can report absolute locations.
func New(baseDir string) (*Store, error) {
	root, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve store root: %w", err)
	}
	return &Store{root: filepath.Clean(root)}, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string { return s.root }

// Save writes the reader to disk under the user's namespace with a random prefix.
func (s *Store) Save(ctx context.Context, userID string, fileName string, r io.Reader) (object.Blob, error) {
	finalName, err := object.StoredName(fileName)
	if err != nil {
		return object.Blob{}, fmt.Errorf("sanitize file name: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return object.Blob{}, err
	}

	dirPath := filepath.Join(s.root, object.UserNamespace(userID))
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		return object.Blob{}, fmt.Errorf("mkdir: %w", err)
	}

	mimeType, body, err := object.Sniff(r)
	if err != nil {
		return object.Blob{}, err
	}

	fullPath := filepath.Join(dirPath, finalName)
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return object.Blob{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, body)
	if err != nil {
		_ = os.Remove(fullPath)
		return object.Blob{}, fmt.Errorf("write body: %w", err)
	}

	return object.Blob{
		Location:  fullPath,
		FileName:  fileName,
		MimeType:  mimeType,
		SizeBytes: size,
	}, nil
}

// Open opens a stored object for reading.
func (s *Store) Open(ctx context.Context, relPath string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, object.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Exists reports whether a regular file is stored at relPath.
func (s *Store) Exists(ctx context.Context, relPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Delete removes the file at relPath. Missing files are not an error.
func (s *Store) Delete(ctx context.Context, relPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return apperr.Internal("failed to delete file", err)
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Internal("failed to delete file", err)
	}
	return nil
}

// ToRelative strips "<root>/" from location.
func (s *Store) ToRelative(location string) string {
	prefix := s.root + string(filepath.Separator)
	if strings.HasPrefix(location, prefix) {
		return strings.TrimPrefix(location, prefix)
	}
	return location
}

func (s *Store) resolve(relPath string) (string, error) {
	clean := filepath.Clean(relPath)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage path %q", relPath)
	}
	return filepath.Join(s.root, clean), nil
}

var _ object.ObjectStore = (*Store)(nil)
