package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"drive-go/internal/drive"
)

// EncryptedStore seals blobs with a drive.Encryptor before handing them to
// the wrapped store. Put only needs the public key. Get needs the store to
// be unlocked first and fails with drive.ErrLocked otherwise.
type EncryptedStore struct {
	inner drive.BlobStore
	enc   drive.Encryptor

	mu  sync.RWMutex
	dec drive.DecryptionContext
}

// NewEncryptedStore wraps inner with enc.
func NewEncryptedStore(inner drive.BlobStore, enc drive.Encryptor) *EncryptedStore {
	return &EncryptedStore{inner: inner, enc: enc}
}

// Unlock opens the private key for this session.
func (e *EncryptedStore) Unlock(passphrase string) error {
	dec, err := e.enc.Unlock(passphrase)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.dec = dec
	e.mu.Unlock()
	return nil
}

// Locked reports whether Get will fail for want of a decryption context.
func (e *EncryptedStore) Locked() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dec == nil
}

// Put encrypts r into a temp file, since the ciphertext length is only known
// afterwards, then stores the ciphertext.
func (e *EncryptedStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	tmp, err := os.CreateTemp("", "drive-enc-*")
	if err != nil {
		return fmt.Errorf("creating encryption buffer: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	plain := &countingReader{r: r}
	if err := e.enc.Encrypt(plain, tmp); err != nil {
		return fmt.Errorf("encrypting blob: %w", err)
	}
	if plain.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, plain.n)
	}

	sealed, err := tmp.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("measuring ciphertext: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding ciphertext: %w", err)
	}

	return e.inner.Put(ctx, key, tmp, sealed)
}

// Get streams the stored ciphertext through the decryption context into w.
func (e *EncryptedStore) Get(ctx context.Context, key string, w io.Writer) error {
	e.mu.RLock()
	dec := e.dec
	e.mu.RUnlock()
	if dec == nil {
		return &drive.Error{Kind: drive.KindLocked, Op: "download", ID: key}
	}

	pr, pw := io.Pipe()
	getErr := make(chan error, 1)
	go func() {
		err := e.inner.Get(ctx, key, pw)
		pw.CloseWithError(err)
		getErr <- err
	}()

	decErr := dec.Decrypt(pr, w)
	pr.Close()

	err := <-getErr
	if errors.Is(err, drive.ErrBlobNotFound) {
		return err
	}
	if decErr != nil {
		return fmt.Errorf("decrypting blob: %w", decErr)
	}
	return err
}

func (e *EncryptedStore) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}

func (e *EncryptedStore) ValidateSetup(ctx context.Context) error {
	if !e.enc.IsConfigured() {
		return fmt.Errorf("encryption keys not configured (run 'drive keys init')")
	}
	return e.inner.ValidateSetup(ctx)
}

// Compile-time check that EncryptedStore implements drive.BlobStore.
var _ drive.BlobStore = (*EncryptedStore)(nil)
