package drive

import (
	"context"
	"errors"
)

var errCorruptTree = errors.New("parent cycle detected")

// Delete removes an item and its whole subtree.
//
// Records are removed bottom-up in one transaction, together with any share
// tokens that target them. Blobs of deleted files are removed after commit; a
// blob that cannot be removed is logged and skipped so that a missing blob
// never leaves a dangling namespace entry. The owner's root cannot be deleted.
func (s *Service) Delete(ctx context.Context, owner, id string) (*DeleteResult, error) {
	res := &DeleteResult{}
	var keys []string

	err := s.store.Update(ctx, func(tx Tx) error {
		item, err := ownedItem(tx, owner, id, "delete")
		if err != nil {
			return err
		}
		if item.IsRoot() {
			return newError(KindForbidden, "delete", id)
		}

		res.Items, res.Shares, keys, err = deleteSubtree(tx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			res.BlobFailures++
			s.logger.Warn("blob removal failed", "owner", owner, "key", key, "error", err)
			continue
		}
		res.Blobs++
	}

	s.logger.Info("item deleted", "owner", owner, "id", id,
		"items", res.Items, "shares", res.Shares, "blob_failures", res.BlobFailures)
	return res, nil
}

// deleteSubtree walks the subtree under root with an explicit stack and
// removes every record in post-order: a node is removed only after all of its
// children. It returns the number of items and shares removed and the storage
// keys of removed files.
func deleteSubtree(tx Tx, root *Item) (items, shares int, keys []string, err error) {
	type frame struct {
		ref      ChildRef
		expanded bool
	}

	stack := []frame{{ref: ChildRef{ID: root.ID, IsDirectory: root.IsDirectory, StorageKey: root.StorageKey}}}
	seen := map[string]bool{root.ID: true}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.ref.IsDirectory && !top.expanded {
			top.expanded = true
			children, err := tx.ChildIDs(top.ref.ID)
			if err != nil {
				return 0, 0, nil, err
			}
			for _, c := range children {
				if seen[c.ID] {
					return 0, 0, nil, &Error{Kind: KindStorageFailure, Op: "delete", ID: c.ID, Err: errCorruptTree}
				}
				seen[c.ID] = true
				stack = append(stack, frame{ref: c})
			}
			continue
		}

		ref := top.ref
		stack = stack[:len(stack)-1]

		n, err := tx.DeleteSharesForItem(ref.ID)
		if err != nil {
			return 0, 0, nil, err
		}
		shares += n

		if err := tx.DeleteItem(ref.ID); err != nil {
			return 0, 0, nil, err
		}
		items++

		if !ref.IsDirectory && ref.StorageKey != "" {
			keys = append(keys, ref.StorageKey)
		}
	}

	return items, shares, keys, nil
}

// Move reparents an item. An empty newParentID moves it to the owner's root.
//
// The destination's ancestor chain is walked upward; if it reaches the item
// being moved, the move would attach a node beneath itself and fails with
// ErrInvalidMove.
func (s *Service) Move(ctx context.Context, owner, id, newParentID string) (*Item, error) {
	var moved *Item
	err := s.store.Update(ctx, func(tx Tx) error {
		item, err := ownedItem(tx, owner, id, "move")
		if err != nil {
			return err
		}
		if item.IsRoot() {
			return newError(KindInvalidMove, "move", id)
		}

		dest, err := s.resolveParent(tx, owner, newParentID, "move")
		if err != nil {
			return err
		}

		inside, err := hasAncestor(tx, dest.ID, item.ID)
		if err != nil {
			return err
		}
		if inside {
			return newError(KindInvalidMove, "move", id)
		}

		now := s.clock.Now()
		if err := tx.UpdateItemParent(item.ID, dest.ID, now); err != nil {
			return err
		}
		item.ParentID = dest.ID
		item.UpdatedAt = now
		moved = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("item moved", "owner", owner, "id", id, "parent", moved.ParentID)
	return moved, nil
}

// hasAncestor reports whether ancestorID is startID itself or appears on the
// parent chain above it.
func hasAncestor(tx Tx, startID, ancestorID string) (bool, error) {
	seen := map[string]bool{}
	cur := startID
	for cur != "" {
		if cur == ancestorID {
			return true, nil
		}
		if seen[cur] {
			return false, &Error{Kind: KindStorageFailure, Op: "walk", ID: cur, Err: errCorruptTree}
		}
		seen[cur] = true

		item, err := tx.GetItem(cur)
		if err != nil {
			return false, err
		}
		if item == nil {
			return false, nil
		}
		cur = item.ParentID
	}
	return false, nil
}
