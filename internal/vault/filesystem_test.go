package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"drive-go/internal/drive"
)

func TestNewFileSystemStore(t *testing.T) {
	t.Run("creates root", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "blobs")

		v, err := NewFileSystemStore("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
		if _, err := os.Stat(v.Root()); err != nil {
			t.Errorf("root not created: %v", err)
		}
		if v.name != "test" {
			t.Errorf("name = %q, want %q", v.name, "test")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		if _, err := NewFileSystemStore("test", t.TempDir()); err != nil {
			t.Fatalf("NewFileSystemStore() error = %v", err)
		}
	})
}

func TestFileSystemStore_Layout(t *testing.T) {
	ctx := context.Background()
	v, err := NewFileSystemStore("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	if err := v.Put(ctx, "alice/0123_notes.txt", strings.NewReader("hi"), 2); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(v.Root(), "alice", "0123_notes.txt"))
	if err != nil {
		t.Fatalf("blob file not at expected path: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("blob content = %q, want %q", data, "hi")
	}

	entries, err := os.ReadDir(filepath.Join(v.Root(), "alice"))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestFileSystemStore_RejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	v, err := NewFileSystemStore("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	for _, key := range []string{"../escape", "alice/../../escape", "/etc/passwd", "", "."} {
		t.Run(key, func(t *testing.T) {
			if err := v.Put(ctx, key, strings.NewReader("x"), 1); !errors.Is(err, drive.ErrInvalidPath) {
				t.Errorf("Put(%q) error = %v, want ErrInvalidPath", key, err)
			}
			if err := v.Delete(ctx, key); !errors.Is(err, drive.ErrInvalidPath) {
				t.Errorf("Delete(%q) error = %v, want ErrInvalidPath", key, err)
			}
		})
	}
}

func TestFileSystemStore_CancelledContext(t *testing.T) {
	v, err := NewFileSystemStore("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemStore() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := v.Put(ctx, "alice/x", strings.NewReader("data"), 4); !errors.Is(err, context.Canceled) {
		t.Errorf("Put() error = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(filepath.Join(v.Root(), "alice", "x")); !os.IsNotExist(err) {
		t.Error("blob written despite cancelled context")
	}
}
