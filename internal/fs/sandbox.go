package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"drive-go/internal/drive"
)

// Sandbox confines path fragments to a root directory. Every path it returns
// is canonical (absolute, cleaned, symlinks resolved) and lies at or below
// the root.
type Sandbox struct {
	root string
}

// NewSandbox creates root if needed and returns a Sandbox anchored at its
// canonical form.
func NewSandbox(root string) (*Sandbox, error) {
	if root == "" {
		return nil, fmt.Errorf("sandbox root must not be empty")
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("creating sandbox root: %w", err)
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving sandbox root: %w", err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root is not a directory: %s", canonical)
	}

	return &Sandbox{root: canonical}, nil
}

// Root returns the canonical sandbox root.
func (s *Sandbox) Root() string {
	return s.root
}

// Resolve maps a relative fragment to a canonical path inside the root.
// Fragments that are absolute, escape the root (directly or through a
// symlink), or name a device, pipe or socket fail with drive.ErrInvalidPath.
// The target does not need to exist.
func (s *Sandbox) Resolve(rel string) (string, error) {
	if filepath.IsAbs(rel) || strings.ContainsRune(rel, 0) {
		return "", invalidPath(rel, nil)
	}

	joined := filepath.Join(s.root, filepath.FromSlash(rel))
	resolved, err := evalExistingPrefix(joined)
	if err != nil {
		return "", invalidPath(rel, err)
	}
	if !within(s.root, resolved) {
		return "", invalidPath(rel, nil)
	}

	info, err := os.Lstat(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return resolved, nil
		}
		return "", fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return "", invalidPath(rel, fmt.Errorf("device files not supported"))
	}
	if mode&os.ModeNamedPipe != 0 {
		return "", invalidPath(rel, fmt.Errorf("named pipes not supported"))
	}
	if mode&os.ModeSocket != 0 {
		return "", invalidPath(rel, fmt.Errorf("sockets not supported"))
	}

	return resolved, nil
}

// evalExistingPrefix resolves symlinks on the longest prefix of p that exists
// and re-appends the missing tail.
func evalExistingPrefix(p string) (string, error) {
	existing := p
	var tail []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		tail = append(tail, filepath.Base(existing))
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	for i := len(tail) - 1; i >= 0; i-- {
		resolved = filepath.Join(resolved, tail[i])
	}
	return resolved, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func invalidPath(rel string, err error) error {
	return &drive.Error{Kind: drive.KindInvalidPath, Op: "resolve", ID: rel, Err: err}
}
