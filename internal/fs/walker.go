package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"drive-go/internal/drive"
)

// Walker exposes a local directory as a drive.LocalTree for Import.
// Symlinks and special files are skipped, and entries matching the ignore
// patterns (config patterns plus the tree's own .driveignore) are pruned.
type Walker struct {
	sandbox *Sandbox
	ignore  *IgnoreMatcher
}

// NewWalker creates a Walker rooted at dir. dir must be an existing directory.
func NewWalker(dir string, patterns []string) (*Walker, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	sb, err := NewSandbox(dir)
	if err != nil {
		return nil, err
	}

	fromFile, err := readIgnoreFile(sb)
	if err != nil {
		return nil, err
	}

	// the tree's own rules come last so they can re-include configured patterns
	rules := append(append([]string{}, patterns...), fromFile...)
	return &Walker{sandbox: sb, ignore: NewIgnoreMatcher(rules)}, nil
}

// Root returns the canonical directory being walked.
func (w *Walker) Root() string {
	return w.sandbox.Root()
}

// Walk visits directories and regular files in lexical order, parents first.
func (w *Walker) Walk(fn func(rel string, isDir bool) error) error {
	root := w.sandbox.Root()
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", p, err)
		}
		rel = filepath.ToSlash(rel)
		if w.ignore.Match(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return fn(rel, true)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return fn(rel, false)
	})
	if err != nil {
		return fmt.Errorf("walking directory: %w", err)
	}
	return nil
}

// Open opens the regular file at rel for reading.
func (w *Walker) Open(rel string) (io.ReadCloser, error) {
	p, err := w.sandbox.Resolve(rel)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(p)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("cannot open %s: not a regular file", rel)
	}
	return os.Open(p)
}

// Compile-time check that Walker implements drive.LocalTree.
var _ drive.LocalTree = (*Walker)(nil)
