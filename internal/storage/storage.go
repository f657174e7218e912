// Package storage defines the interface for the byte store behind the
// object index. Swap implementations by changing the concrete type injected
// at startup — local filesystem for single-node deployments, MinIO for any
// S3-compatible provider.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when no bytes exist under the given key.
var ErrNotFound = errors.New("storage: key not found")

// Storage is the interface for writing, streaming and deleting object bytes.
// Keys are opaque server-generated paths; callers never derive them from
// client input.
type Storage interface {
	// Upload streams data to the store under the given key. On failure no
	// partial bytes remain under the key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Open returns a stream of the bytes stored under key. The caller must
	// close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the bytes under key. Deleting a missing key returns
	// ErrNotFound.
	Delete(ctx context.Context, key string) error
	// Exists reports whether bytes are stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}
