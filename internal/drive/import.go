package drive

import (
	"context"
	"fmt"
	"io"
	"path"
)

// LocalTree is a read-only view of a local directory tree to be imported.
type LocalTree interface {
	// Walk calls fn for every entry below the tree root, parents before their
	// children. rel is slash-separated and relative to the root.
	Walk(fn func(rel string, isDir bool) error) error

	// Open opens the file at rel for reading.
	Open(rel string) (io.ReadCloser, error)
}

// Import mirrors a local directory tree beneath parentID. Directories are
// created with Mkdir and files with Upload, so every entry gets the same
// checks as an interactive call. An entry that fails is logged, counted in
// Failures and skipped along with anything below it; the walk goes on.
// A bad destination, a failing walk or a cancelled ctx stops the import.
func (s *Service) Import(ctx context.Context, owner, parentID string, tree LocalTree) (*ImportResult, error) {
	var dest *Item
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		dest, err = s.resolveParent(tx, owner, parentID, "import")
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &ImportResult{}
	dirs := map[string]string{".": dest.ID}
	failed := map[string]bool{}

	fail := func(rel string, isDir bool, err error) {
		res.Failures++
		if isDir {
			failed[rel] = true
		}
		s.logger.Warn("import entry failed", "owner", owner, "path", rel, "error", err)
	}

	err = tree.Walk(func(rel string, isDir bool) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		parent, ok := dirs[path.Dir(rel)]
		if !ok {
			if failed[path.Dir(rel)] {
				if isDir {
					failed[rel] = true
				}
				return nil
			}
			return fmt.Errorf("importing %s: parent directory was not visited", rel)
		}

		if isDir {
			dir, err := s.Mkdir(ctx, owner, parent, path.Base(rel))
			if err != nil {
				fail(rel, true, err)
				return nil
			}
			dirs[rel] = dir.ID
			res.Directories++
			return nil
		}

		item, err := s.importFile(ctx, owner, parent, rel, tree)
		if err != nil {
			fail(rel, false, err)
			return nil
		}
		res.Files++
		res.Bytes += item.Size
		return nil
	})
	if err != nil {
		return res, err
	}

	s.logger.Info("directory imported", "owner", owner, "parent", dest.ID,
		"directories", res.Directories, "files", res.Files, "bytes", res.Bytes, "failures", res.Failures)
	return res, nil
}

func (s *Service) importFile(ctx context.Context, owner, parentID, rel string, tree LocalTree) (*Item, error) {
	f, err := tree.Open(rel)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", rel, err)
	}
	defer f.Close()
	return s.Upload(ctx, owner, parentID, path.Base(rel), f)
}
