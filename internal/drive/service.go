package drive

import (
	"context"
	"fmt"
	"strings"
)

// Service is the orchestration layer over the namespace store, the blob store
// and the share tokens. Callers pass an already authenticated owner id.
type Service struct {
	store    Store
	blobs    BlobStore
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	tokens   TokenGenerator
	linkBase string
}

// NewService creates a Service with the provided dependencies.
func NewService(store Store, blobs BlobStore, logger Logger, clock Clock, idgen IDGenerator, tokens TokenGenerator) *Service {
	return &Service{
		store:  store,
		blobs:  blobs,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
		tokens: tokens,
	}
}

// SetLinkBase sets the URL prefix used when building share links,
// e.g. "https://drive.example.com". Empty yields host-relative links.
func (s *Service) SetLinkBase(base string) {
	s.linkBase = strings.TrimRight(base, "/")
}

// Mkdir creates a directory under parentID. An empty parentID means the
// owner's root; an empty name means DefaultFolderName.
func (s *Service) Mkdir(ctx context.Context, owner, parentID, name string) (*Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultFolderName
	}
	if err := validateName("mkdir", name); err != nil {
		return nil, err
	}

	var created *Item
	err := s.store.Update(ctx, func(tx Tx) error {
		parent, err := s.resolveParent(tx, owner, parentID, "mkdir")
		if err != nil {
			return err
		}
		now := s.clock.Now()
		created = &Item{
			ID:          s.idgen.New(),
			Name:        name,
			ParentID:    parent.ID,
			IsDirectory: true,
			OwnerID:     owner,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.InsertItem(created)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("directory created", "owner", owner, "id", created.ID, "name", name)
	return created, nil
}

// List returns the children of parentID, directories first and then by
// case-insensitive name. An empty parentID lists the owner's root, creating
// it on first access.
func (s *Service) List(ctx context.Context, owner, parentID string) ([]*Item, error) {
	run := s.store.View
	if parentID == "" {
		run = s.store.Update
	}

	var children []*Item
	err := run(ctx, func(tx Tx) error {
		var dir *Item
		var err error
		if parentID == "" {
			dir, err = s.ensureRoot(tx, owner)
		} else {
			dir, err = ownedItem(tx, owner, parentID, "list")
		}
		if err != nil {
			return err
		}
		if !dir.IsDirectory {
			return newError(KindNotDirectory, "list", parentID)
		}
		children, err = tx.Children(dir.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// Root returns the owner's root directory, creating it if needed.
func (s *Service) Root(ctx context.Context, owner string) (*Item, error) {
	var root *Item
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		root, err = s.ensureRoot(tx, owner)
		return err
	})
	return root, err
}

// Get returns an item owned by owner.
func (s *Service) Get(ctx context.Context, owner, id string) (*Item, error) {
	var item *Item
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		item, err = ownedItem(tx, owner, id, "get")
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Path returns the chain of items from the owner's root down to id.
func (s *Service) Path(ctx context.Context, owner, id string) ([]*Item, error) {
	var chain []*Item
	err := s.store.View(ctx, func(tx Tx) error {
		item, err := ownedItem(tx, owner, id, "path")
		if err != nil {
			return err
		}
		seen := map[string]bool{}
		for item != nil {
			if seen[item.ID] {
				return &Error{Kind: KindStorageFailure, Op: "path", ID: id, Err: errCorruptTree}
			}
			seen[item.ID] = true
			chain = append(chain, item)
			if item.IsRoot() {
				break
			}
			item, err = tx.GetItem(item.ParentID)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// Rename changes an item's name. It never touches the parent, so no cycle
// check is needed.
func (s *Service) Rename(ctx context.Context, owner, id, newName string) error {
	newName = strings.TrimSpace(newName)
	if err := validateName("rename", newName); err != nil {
		return err
	}

	err := s.store.Update(ctx, func(tx Tx) error {
		item, err := ownedItem(tx, owner, id, "rename")
		if err != nil {
			return err
		}
		return tx.UpdateItemName(item.ID, newName, s.clock.Now())
	})
	if err != nil {
		return err
	}

	s.logger.Info("item renamed", "owner", owner, "id", id, "name", newName)
	return nil
}

// ensureRoot returns the owner's root, inserting it if this is the owner's
// first access. Must run in an Update transaction.
func (s *Service) ensureRoot(tx Tx, owner string) (*Item, error) {
	if owner == "" {
		return nil, newError(KindForbidden, "root", "")
	}
	root, err := tx.RootFor(owner)
	if err != nil {
		return nil, fmt.Errorf("finding root: %w", err)
	}
	if root != nil {
		return root, nil
	}

	now := s.clock.Now()
	root = &Item{
		ID:          s.idgen.New(),
		Name:        RootName,
		IsDirectory: true,
		OwnerID:     owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.InsertItem(root); err != nil {
		return nil, fmt.Errorf("creating root: %w", err)
	}
	s.logger.Info("root created", "owner", owner, "id", root.ID)
	return root, nil
}

// resolveParent returns the directory a new or moved item will live under.
// An empty parentID selects the owner's root.
func (s *Service) resolveParent(tx Tx, owner, parentID, op string) (*Item, error) {
	if parentID == "" {
		return s.ensureRoot(tx, owner)
	}
	parent, err := tx.GetItem(parentID)
	if err != nil {
		return nil, fmt.Errorf("finding parent: %w", err)
	}
	if parent == nil || parent.OwnerID != owner || !parent.IsDirectory {
		return nil, newError(KindParentNotFound, op, parentID)
	}
	return parent, nil
}

// ownedItem returns the item if it exists and belongs to owner. Items owned by
// someone else are indistinguishable from missing ones.
func ownedItem(tx Tx, owner, id, op string) (*Item, error) {
	if id == "" {
		return nil, newError(KindNotFound, op, id)
	}
	item, err := tx.GetItem(id)
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	if item == nil || item.OwnerID != owner {
		return nil, newError(KindNotFound, op, id)
	}
	return item, nil
}

// validateName rejects names that cannot be shown as a single path segment.
func validateName(op, name string) error {
	if name == "" || strings.ContainsAny(name, "/\x00") {
		return &Error{Kind: KindInvalidName, Op: op, ID: name}
	}
	return nil
}
