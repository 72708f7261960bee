package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"drive-go/internal/drive"
	"drive-go/internal/vault"
)

// NewTestBlobStore creates a new in-memory blob store for testing.
func NewTestBlobStore() *vault.MemoryStore {
	return vault.NewMemoryStore("test-blobs")
}

// ErrInjected is returned by FaultyBlobStore for the operations it is told to fail.
var ErrInjected = errors.New("injected blob store failure")

// FaultyBlobStore wraps a MemoryStore and fails selected operations.
type FaultyBlobStore struct {
	*vault.MemoryStore

	mu          sync.Mutex
	FailPut     bool
	FailGet     bool
	FailDelete  map[string]bool // keys whose Delete fails
	DeleteCalls []string
}

// NewFaultyBlobStore creates a FaultyBlobStore that initially fails nothing.
func NewFaultyBlobStore() *FaultyBlobStore {
	return &FaultyBlobStore{
		MemoryStore: NewTestBlobStore(),
		FailDelete:  make(map[string]bool),
	}
}

func (f *FaultyBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if f.FailPut {
		return ErrInjected
	}
	return f.MemoryStore.Put(ctx, key, r, size)
}

func (f *FaultyBlobStore) Get(ctx context.Context, key string, w io.Writer) error {
	if f.FailGet {
		return ErrInjected
	}
	return f.MemoryStore.Get(ctx, key, w)
}

func (f *FaultyBlobStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.DeleteCalls = append(f.DeleteCalls, key)
	fail := f.FailDelete[key]
	f.mu.Unlock()

	if fail {
		return ErrInjected
	}
	return f.MemoryStore.Delete(ctx, key)
}

var _ drive.BlobStore = (*FaultyBlobStore)(nil)
