package drive

import (
	"context"
	"time"
)

// Store provides transactional access to the namespace, share tokens and the
// operation log. Every structural change runs inside a single Update call so a
// crash never leaves a child pointing at a removed parent.
type Store interface {
	// Update runs fn in a read-write transaction. Write transactions are
	// serialized; fn's error rolls the transaction back.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx Tx) error) error

	// CreateOperation records the start of a mutating operation.
	CreateOperation(ctx context.Context, operation, parameters, ownerID string, startedAt time.Time) (*Operation, error)

	// FinishOperation sets the final status of an operation.
	FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error

	// ListOperations returns the most recent operations, newest first.
	ListOperations(ctx context.Context, limit int) ([]*Operation, error)

	// CheckMigrations verifies the schema is at the latest version.
	CheckMigrations() error

	// BackupTo writes a consistent copy of the store to destPath.
	BackupTo(ctx context.Context, destPath string) error

	Close() error
}

// Tx exposes the namespace primitives inside a transaction. Lookups that find
// nothing return (nil, nil).
type Tx interface {
	// Item operations

	// RootFor returns the owner's root directory, or nil if it has not been created.
	RootFor(ownerID string) (*Item, error)

	// GetItem returns the item with the given id regardless of owner.
	GetItem(id string) (*Item, error)

	// InsertItem stores a new item record.
	InsertItem(item *Item) error

	// Children returns the items whose parent is parentID, directories first,
	// then by case-insensitive name.
	Children(parentID string) ([]*Item, error)

	// ChildIDs returns the ids and directory flag of parentID's children
	// without materializing full records.
	ChildIDs(parentID string) ([]ChildRef, error)

	UpdateItemName(id, name string, updatedAt time.Time) error
	UpdateItemParent(id, parentID string, updatedAt time.Time) error
	UpdateItemContent(id string, size int64, storageKey, contentType string, updatedAt time.Time) error

	// DeleteItem removes a single item record. Children must already be gone.
	DeleteItem(id string) error

	// Share token operations

	InsertShare(share *ShareToken) error
	GetShare(token string) (*ShareToken, error)
	DeleteShare(token string) error

	// DeleteSharesForItem removes every token that targets itemID and
	// returns how many were removed.
	DeleteSharesForItem(itemID string) (int, error)

	// ListSharesForOwner returns tokens whose target item exists and is
	// owned by ownerID, newest first. Tokens for deleted items are skipped.
	ListSharesForOwner(ownerID string) ([]*Share, error)

	// DeleteExpiredShares removes every token that expired at or before now.
	DeleteExpiredShares(now time.Time) (int, error)
}

// ChildRef is a lightweight reference to a child item used by tree walks.
type ChildRef struct {
	ID          string
	IsDirectory bool
	StorageKey  string
}
