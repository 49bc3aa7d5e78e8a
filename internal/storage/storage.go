package storage

import (
	"context"
	"errors"
)

// ErrNotExist is returned by Read when the object is absent. Callers treat a
// missing file during cleanup as routine, not a failure.
var ErrNotExist = errors.New("object does not exist")

// Backend is the narrow capability the export pipeline and the retention
// cleaner need. Implementations must be safe for concurrent use.
type Backend interface {
	// Write stores data at path, creating parent "directories" as needed.
	Write(ctx context.Context, path string, data []byte) error

	// Read returns the object bytes, or ErrNotExist when absent.
	Read(ctx context.Context, path string) ([]byte, error)

	// Exists checks if an object exists
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes an object. Deleting an absent object is not an error.
	Delete(ctx context.Context, path string) error
}
