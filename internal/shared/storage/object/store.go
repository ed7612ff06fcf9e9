package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open when no object is stored at the path.
var ErrNotFound = errors.New("object not found")

// Blob describes a stored object as reported by Save.
// Location is store-absolute; persist ToRelative(Location) instead.
type Blob struct {
	Location  string
	FileName  string
	MimeType  string
	SizeBytes int64
}

// ObjectStore defines the contract for saving and retrieving binary objects.
// Paths passed to Open, Exists and Delete are relative to the store root.
type ObjectStore interface {
	Save(ctx context.Context, userID string, fileName string, r io.Reader) (Blob, error)
	Open(ctx context.Context, relPath string) (io.ReadCloser, error)
	Exists(ctx context.Context, relPath string) (bool, error)
	// Delete removes the object. A missing object is not an error.
	Delete(ctx context.Context, relPath string) error
	// ToRelative strips the store root from location. Locations outside the
	// root are returned unchanged.
	ToRelative(location string) string
}
