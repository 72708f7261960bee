package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"drive-go/internal/drive"
	"drive-go/internal/fs"
)

// FileSystemStore is a drive.BlobStore that keeps each blob as a file below a
// root directory. Keys are slash-separated paths relative to the root, e.g.
//
//	<root>/
//	  <owner>/
//	    <uuid>_<name>
//
// Every key is resolved through an fs.Sandbox, so a key can never address a
// file outside the root.
type FileSystemStore struct {
	name    string
	sandbox *fs.Sandbox
}

// NewFileSystemStore creates a blob store rooted at root, creating it if needed.
func NewFileSystemStore(name, root string) (*FileSystemStore, error) {
	sb, err := fs.NewSandbox(root)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &FileSystemStore{name: name, sandbox: sb}, nil
}

// Root returns the canonical root directory.
func (v *FileSystemStore) Root() string {
	return v.sandbox.Root()
}

// Put writes the blob atomically (temp file + rename) and verifies its size.
func (v *FileSystemStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	destPath, err := v.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0700); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	return writeFile(ctx, destPath, r, size)
}

// Get copies the blob stored under key to w.
func (v *FileSystemStore) Get(ctx context.Context, key string, w io.Writer) error {
	srcPath, err := v.resolve(key)
	if err != nil {
		return err
	}

	f, err := os.Open(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("blob %s: %w", key, drive.ErrBlobNotFound)
		}
		return fmt.Errorf("failed to open blob: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, &ctxReader{ctx: ctx, r: f}); err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}
	return nil
}

// Delete removes the blob. A missing blob is not an error.
func (v *FileSystemStore) Delete(ctx context.Context, key string) error {
	p, err := v.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove blob: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the root exists and accepts new files.
func (v *FileSystemStore) ValidateSetup(ctx context.Context) error {
	root := v.sandbox.Root()
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("blob root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("blob root is not a directory: %s", root)
	}

	tmp, err := os.CreateTemp(root, ".tmp-check-*")
	if err != nil {
		return fmt.Errorf("blob root not writable: %w", err)
	}
	tmp.Close()
	return os.Remove(tmp.Name())
}

// resolve maps a key to a file path. Keys that name the root itself are
// rejected along with anything the sandbox refuses.
func (v *FileSystemStore) resolve(key string) (string, error) {
	p, err := v.sandbox.Resolve(key)
	if err != nil {
		return "", err
	}
	if p == v.sandbox.Root() {
		return "", &drive.Error{Kind: drive.KindInvalidPath, Op: "blob", ID: key}
	}
	return p, nil
}

// writeFile writes r to destPath through a temp file in the same directory,
// so readers never observe a partial blob.
func writeFile(ctx context.Context, destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// Compile-time check that FileSystemStore implements drive.BlobStore.
var _ drive.BlobStore = (*FileSystemStore)(nil)
