package vault

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"drive-go/internal/drive"
	"drive-go/internal/encryption"
)

func TestEncryptedStore_StoresCiphertext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore("inner")
	s := NewEncryptedStore(inner, encryption.NewTestEncryptor())

	if err := s.Put(ctx, "alice/secret", strings.NewReader("plaintext"), 9); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	var raw bytes.Buffer
	if err := inner.Get(ctx, "alice/secret", &raw); err != nil {
		t.Fatalf("inner Get() error = %v", err)
	}
	if raw.String() == "plaintext" {
		t.Error("inner store holds plaintext")
	}
	if raw.Len() <= len("plaintext") {
		t.Errorf("ciphertext length = %d, want more than plaintext", raw.Len())
	}
}

func TestEncryptedStore_Locked(t *testing.T) {
	ctx := context.Background()
	enc := encryption.NewTestEncryptor()
	if err := enc.Setup("secret"); err != nil {
		t.Fatal(err)
	}
	s := NewEncryptedStore(NewMemoryStore("inner"), enc)

	if !s.Locked() {
		t.Fatal("Locked() = false before Unlock")
	}
	if err := s.Put(ctx, "alice/a", strings.NewReader("abc"), 3); err != nil {
		t.Fatalf("Put() while locked error = %v", err)
	}

	var buf bytes.Buffer
	if err := s.Get(ctx, "alice/a", &buf); !errors.Is(err, drive.ErrLocked) {
		t.Errorf("Get() while locked error = %v, want ErrLocked", err)
	}

	if err := s.Unlock("wrong"); !errors.Is(err, drive.ErrLocked) {
		t.Errorf("Unlock(wrong) error = %v, want ErrLocked", err)
	}
	if !s.Locked() {
		t.Error("Locked() = false after failed Unlock")
	}

	if err := s.Unlock("secret"); err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	if err := s.Get(ctx, "alice/a", &buf); err != nil {
		t.Fatalf("Get() after Unlock error = %v", err)
	}
	if buf.String() != "abc" {
		t.Errorf("Get() = %q, want %q", buf.String(), "abc")
	}
}

func TestEncryptedStore_CorruptCiphertext(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore("inner")
	s := NewEncryptedStore(inner, encryption.NewTestEncryptor())
	if err := s.Unlock("x"); err != nil {
		t.Fatal(err)
	}

	if err := inner.Put(ctx, "alice/raw", strings.NewReader("not sealed"), 10); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	err := s.Get(ctx, "alice/raw", &buf)
	if err == nil {
		t.Fatal("Get() expected decryption error")
	}
	if errors.Is(err, drive.ErrBlobNotFound) {
		t.Errorf("Get() error = %v, should not be ErrBlobNotFound", err)
	}
}

func TestEncryptedStore_ValidateSetup(t *testing.T) {
	s := NewEncryptedStore(NewMemoryStore("inner"), &unconfiguredEncryptor{})
	if err := s.ValidateSetup(context.Background()); err == nil {
		t.Error("ValidateSetup() expected error when keys are missing")
	}
}

type unconfiguredEncryptor struct {
	encryption.TestEncryptor
}

func (*unconfiguredEncryptor) IsConfigured() bool { return false }
