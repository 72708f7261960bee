package drive

import (
	"context"
	"io"
)

// BlobStore holds file content addressed by opaque storage keys.
// All operations stream through io.Reader/io.Writer so large files are never
// loaded into memory.
type BlobStore interface {
	// Put stores size bytes read from r under key. The write is atomic: a
	// failed Put leaves no partial blob behind.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the blob stored under key to w. Returns an error wrapping
	// ErrBlobNotFound if there is no such blob.
	Get(ctx context.Context, key string, w io.Writer) error

	// Delete removes the blob under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ValidateSetup verifies that the store is reachable and writable.
	ValidateSetup(ctx context.Context) error
}
