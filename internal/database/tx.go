package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"drive-go/internal/drive"
)

// sqliteTx implements drive.Tx over a *sql.Tx. Every query filters by an
// explicit id or owner column.
type sqliteTx struct {
	ctx context.Context
	tx  *sql.Tx
}

const itemColumns = `id, name, parent_id, is_directory, size, owner_id, storage_key, content_type, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*drive.Item, error) {
	var it drive.Item
	var parentID, storageKey sql.NullString
	var created, updated string

	err := row.Scan(&it.ID, &it.Name, &parentID, &it.IsDirectory, &it.Size, &it.OwnerID,
		&storageKey, &it.ContentType, &created, &updated)
	if err != nil {
		return nil, err
	}

	it.ParentID = parentID.String
	it.StorageKey = storageKey.String
	if it.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if it.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &it, nil
}

// Items

func (t *sqliteTx) RootFor(ownerID string) (*drive.Item, error) {
	row := t.tx.QueryRowContext(t.ctx,
		`SELECT `+itemColumns+` FROM items WHERE owner_id = ? AND parent_id IS NULL`, ownerID)
	item, err := scanItem(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding root for %s: %w", ownerID, err)
	}
	return item, nil
}

func (t *sqliteTx) GetItem(id string) (*drive.Item, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding item %s: %w", id, err)
	}
	return item, nil
}

func (t *sqliteTx) InsertItem(item *drive.Item) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, nullString(item.ParentID), item.IsDirectory, item.Size, item.OwnerID,
		nullString(item.StorageKey), item.ContentType, formatTime(item.CreatedAt), formatTime(item.UpdatedAt))
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

func (t *sqliteTx) Children(parentID string) ([]*drive.Item, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT `+itemColumns+` FROM items WHERE parent_id = ?
		 ORDER BY is_directory DESC, name COLLATE FOLD, name, id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", parentID, err)
	}
	defer rows.Close()

	var items []*drive.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", parentID, err)
	}
	return items, nil
}

func (t *sqliteTx) ChildIDs(parentID string) ([]drive.ChildRef, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT id, is_directory, COALESCE(storage_key, '') FROM items WHERE parent_id = ?`, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", parentID, err)
	}
	defer rows.Close()

	var refs []drive.ChildRef
	for rows.Next() {
		var ref drive.ChildRef
		if err := rows.Scan(&ref.ID, &ref.IsDirectory, &ref.StorageKey); err != nil {
			return nil, fmt.Errorf("scanning child: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing children of %s: %w", parentID, err)
	}
	return refs, nil
}

func (t *sqliteTx) UpdateItemName(id, name string, updatedAt time.Time) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE items SET name = ?, updated_at = ? WHERE id = ?`, name, formatTime(updatedAt), id)
	if err != nil {
		return fmt.Errorf("renaming item: %w", err)
	}
	return expectOneRow(res, "item", id)
}

func (t *sqliteTx) UpdateItemParent(id, parentID string, updatedAt time.Time) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE items SET parent_id = ?, updated_at = ? WHERE id = ?`, parentID, formatTime(updatedAt), id)
	if err != nil {
		return fmt.Errorf("moving item: %w", err)
	}
	return expectOneRow(res, "item", id)
}

func (t *sqliteTx) UpdateItemContent(id string, size int64, storageKey, contentType string, updatedAt time.Time) error {
	res, err := t.tx.ExecContext(t.ctx,
		`UPDATE items SET size = ?, storage_key = ?, content_type = ?, updated_at = ? WHERE id = ? AND is_directory = 0`,
		size, nullString(storageKey), contentType, formatTime(updatedAt), id)
	if err != nil {
		return fmt.Errorf("updating item content: %w", err)
	}
	return expectOneRow(res, "item", id)
}

func (t *sqliteTx) DeleteItem(id string) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}
	return expectOneRow(res, "item", id)
}

// Shares

func (t *sqliteTx) InsertShare(share *drive.ShareToken) error {
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO shares (token, item_id, expires_at, note, created_at) VALUES (?, ?, ?, ?, ?)`,
		share.Token, share.ItemID, formatNullTime(share.ExpiresAt), share.Note, formatTime(share.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting share: %w", err)
	}
	return nil
}

func (t *sqliteTx) GetShare(token string) (*drive.ShareToken, error) {
	var st drive.ShareToken
	var expires sql.NullString
	var created string

	err := t.tx.QueryRowContext(t.ctx,
		`SELECT token, item_id, expires_at, note, created_at FROM shares WHERE token = ?`, token).
		Scan(&st.Token, &st.ItemID, &expires, &st.Note, &created)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding share: %w", err)
	}

	if st.ExpiresAt, err = parseNullTime(expires); err != nil {
		return nil, err
	}
	if st.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &st, nil
}

func (t *sqliteTx) DeleteShare(token string) error {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM shares WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("deleting share: %w", err)
	}
	return expectOneRow(res, "share", "")
}

func (t *sqliteTx) DeleteSharesForItem(itemID string) (int, error) {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM shares WHERE item_id = ?`, itemID)
	if err != nil {
		return 0, fmt.Errorf("deleting shares for %s: %w", itemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return int(n), nil
}

func (t *sqliteTx) ListSharesForOwner(ownerID string) ([]*drive.Share, error) {
	// The inner join drops tokens whose item no longer exists.
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT s.token, s.item_id, s.expires_at, s.note, s.created_at, i.name, i.is_directory
		 FROM shares s
		 JOIN items i ON i.id = s.item_id
		 WHERE i.owner_id = ?
		 ORDER BY s.created_at DESC, s.token`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing shares: %w", err)
	}
	defer rows.Close()

	var shares []*drive.Share
	for rows.Next() {
		var sh drive.Share
		var expires sql.NullString
		var created string
		if err := rows.Scan(&sh.Token, &sh.ItemID, &expires, &sh.Note, &created, &sh.ItemName, &sh.IsDirectory); err != nil {
			return nil, fmt.Errorf("scanning share: %w", err)
		}
		if sh.ExpiresAt, err = parseNullTime(expires); err != nil {
			return nil, err
		}
		if sh.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		shares = append(shares, &sh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing shares: %w", err)
	}
	return shares, nil
}

func (t *sqliteTx) DeleteExpiredShares(now time.Time) (int, error) {
	res, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM shares WHERE expires_at IS NOT NULL AND expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired shares: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return int(n), nil
}

// Compile-time check that sqliteTx implements drive.Tx.
var _ drive.Tx = (*sqliteTx)(nil)
