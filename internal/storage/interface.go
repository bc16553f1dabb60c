// Package storage provides object storage backends for run snapshots.
package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the object operations the snapshot archive needs.
type ObjectStorage interface {
	// Upload writes an object, replacing any existing object at key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Download opens an object for reading. Callers close the reader.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)

	// EnsureBucket creates the configured bucket when the backend allows it.
	EnsureBucket(ctx context.Context) error
}
