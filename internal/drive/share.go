package drive

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// ShareOptions controls a newly issued share token.
type ShareOptions struct {
	TTL  time.Duration // zero or negative: never expires
	Note string
}

// Share issues a capability token for an item owned by owner.
func (s *Service) Share(ctx context.Context, owner, id string, opts ShareOptions) (*Share, error) {
	token, err := s.tokens.NewToken()
	if err != nil {
		return nil, fmt.Errorf("generating share token: %w", err)
	}

	var share *Share
	err = s.store.Update(ctx, func(tx Tx) error {
		item, err := ownedItem(tx, owner, id, "share.issue")
		if err != nil {
			return err
		}

		now := s.clock.Now()
		st := ShareToken{
			Token:     token,
			ItemID:    item.ID,
			Note:      opts.Note,
			CreatedAt: now,
		}
		if opts.TTL > 0 {
			exp := now.Add(opts.TTL)
			st.ExpiresAt = &exp
		}
		if err := tx.InsertShare(&st); err != nil {
			return err
		}

		share = &Share{
			ShareToken:  st,
			ItemName:    item.Name,
			IsDirectory: item.IsDirectory,
			Link:        s.link(item.ID, token),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("share issued", "owner", owner, "id", id, "expires_at", share.ExpiresAt)
	return share, nil
}

// Validate returns the id of the item a token grants access to. Unknown tokens
// fail with ErrInvalidToken and expired ones with ErrExpired. Expired tokens
// are left in place; PurgeExpired removes them.
func (s *Service) Validate(ctx context.Context, token string) (string, error) {
	var itemID string
	err := s.store.View(ctx, func(tx Tx) error {
		st, err := s.validToken(tx, token, "share.validate")
		if err != nil {
			return err
		}
		itemID = st.ItemID
		return nil
	})
	return itemID, err
}

// Revoke deletes a token. Unknown tokens fail with ErrNotFound; tokens whose
// item is missing or owned by someone else fail with ErrForbidden.
func (s *Service) Revoke(ctx context.Context, owner, token string) error {
	err := s.store.Update(ctx, func(tx Tx) error {
		st, err := tx.GetShare(token)
		if err != nil {
			return fmt.Errorf("finding share: %w", err)
		}
		if st == nil {
			return newError(KindNotFound, "share.revoke", "")
		}
		item, err := tx.GetItem(st.ItemID)
		if err != nil {
			return fmt.Errorf("finding item: %w", err)
		}
		if item == nil || item.OwnerID != owner {
			return newError(KindForbidden, "share.revoke", st.ItemID)
		}
		return tx.DeleteShare(token)
	})
	if err != nil {
		return err
	}

	s.logger.Info("share revoked", "owner", owner)
	return nil
}

// ListShares returns the owner's share tokens with their item names, newest
// first. Tokens whose item has been deleted are omitted.
func (s *Service) ListShares(ctx context.Context, owner string) ([]*Share, error) {
	var shares []*Share
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		shares, err = tx.ListSharesForOwner(owner)
		return err
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	for _, sh := range shares {
		sh.Link = s.link(sh.ItemID, sh.Token)
		sh.Expired = sh.ExpiredAt(now)
	}
	return shares, nil
}

// PurgeExpired removes every expired token and returns how many were removed.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	var n int
	err := s.store.Update(ctx, func(tx Tx) error {
		var err error
		n, err = tx.DeleteExpiredShares(s.clock.Now())
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired shares purged", "count", n)
	}
	return n, nil
}

// Browse gives read-only access through a token. id selects the shared item or
// anything beneath it; empty means the shared item itself. Directories come
// back with a shallow listing of their children.
func (s *Service) Browse(ctx context.Context, token, id string) (*Item, []*Item, error) {
	var item *Item
	var children []*Item
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		item, err = s.sharedItem(tx, token, id, "share.browse")
		if err != nil {
			return err
		}
		if item.IsDirectory {
			children, err = tx.Children(item.ID)
		}
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return item, children, nil
}

// validToken loads a token and checks its expiry.
func (s *Service) validToken(tx Tx, token, op string) (*ShareToken, error) {
	if token == "" {
		return nil, newError(KindInvalidToken, op, "")
	}
	st, err := tx.GetShare(token)
	if err != nil {
		return nil, fmt.Errorf("finding share: %w", err)
	}
	if st == nil {
		return nil, newError(KindInvalidToken, op, "")
	}
	if st.ExpiredAt(s.clock.Now()) {
		return nil, newError(KindExpired, op, st.ItemID)
	}
	return st, nil
}

// sharedItem resolves id through a token. The item must be the token's target
// or one of its descendants.
func (s *Service) sharedItem(tx Tx, token, id, op string) (*Item, error) {
	st, err := s.validToken(tx, token, op)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = st.ItemID
	}

	item, err := tx.GetItem(id)
	if err != nil {
		return nil, fmt.Errorf("finding item: %w", err)
	}
	if item == nil {
		return nil, newError(KindNotFound, op, id)
	}

	inside, err := hasAncestor(tx, item.ID, st.ItemID)
	if err != nil {
		return nil, err
	}
	if !inside {
		return nil, newError(KindForbidden, op, id)
	}
	return item, nil
}

// link builds the download URL for a shared item.
func (s *Service) link(itemID, token string) string {
	return fmt.Sprintf("%s/api/download/%s?token=%s", s.linkBase, url.PathEscape(itemID), url.QueryEscape(token))
}
