package fs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// IgnoreFileName is the per-tree ignore file read by NewWalker. The file
// itself is never imported.
const IgnoreFileName = ".driveignore"

// ignoreRule is one parsed line of an ignore list.
//
//	*.log      any entry whose name matches
//	build/     directories only
//	/notes.txt only at the tree root
//	docs/*.tmp the whole relative path must match
//	!keep.log  re-include an entry an earlier rule excluded
type ignoreRule struct {
	glob     string
	negate   bool
	dirOnly  bool
	anchored bool // match the whole relative path instead of the name
}

// IgnoreMatcher decides which entries of a local tree Import skips. Rules
// are applied in order and the last one that matches wins.
type IgnoreMatcher struct {
	rules []ignoreRule
}

// NewIgnoreMatcher builds a matcher from raw lines. Blank lines, '#'
// comments and malformed globs are dropped.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range lines {
		if r, ok := parseIgnoreRule(line); ok {
			m.rules = append(m.rules, r)
		}
	}
	return m
}

func parseIgnoreRule(line string) (ignoreRule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}

	var r ignoreRule
	if rest, ok := strings.CutPrefix(line, "!"); ok {
		r.negate = true
		line = rest
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = strings.TrimLeft(line, "/")
	} else if strings.Contains(line, "/") {
		r.anchored = true
	}
	if line == "" {
		return ignoreRule{}, false
	}
	if _, err := path.Match(line, ""); err != nil {
		return ignoreRule{}, false
	}
	r.glob = line
	return r, true
}

// Match reports whether the entry at rel is skipped. rel is slash-separated
// and relative to the tree root, as passed to drive.LocalTree.Walk.
func (m *IgnoreMatcher) Match(rel string, isDir bool) bool {
	name := path.Base(rel)
	if name == IgnoreFileName && !isDir {
		return true
	}

	ignored := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		subject := name
		if r.anchored {
			subject = rel
		}
		if ok, _ := path.Match(r.glob, subject); ok {
			ignored = !r.negate
		}
	}
	return ignored
}

// readIgnoreFile returns the lines of the tree's ignore file, or nil when the
// tree has none.
func readIgnoreFile(sb *Sandbox) ([]string, error) {
	p, err := sb.Resolve(IgnoreFileName)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", IgnoreFileName, err)
	}
	defer f.Close()
	return readLines(f)
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", IgnoreFileName, err)
	}
	return lines, nil
}
