package drive

import "time"

// RootName is the name given to an owner's root directory when it is created.
const RootName = "root"

// DefaultFolderName is used by Mkdir when no name is supplied.
const DefaultFolderName = "New Folder"

// Item is a node in an owner's namespace tree.
type Item struct {
	ID          string
	Name        string
	ParentID    string // empty for a root
	IsDirectory bool
	Size        int64
	OwnerID     string
	StorageKey  string // empty for directories
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsRoot reports whether the item is its owner's root directory.
func (i *Item) IsRoot() bool {
	return i.ParentID == ""
}

// ShareToken is a capability granting read access to one item's subtree.
type ShareToken struct {
	Token     string
	ItemID    string
	ExpiresAt *time.Time // nil means the token never expires
	Note      string
	CreatedAt time.Time
}

// ExpiredAt reports whether the token is past its expiry at now.
func (t *ShareToken) ExpiredAt(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Share is a ShareToken joined with the current name of its target item.
type Share struct {
	ShareToken
	ItemName    string
	IsDirectory bool
	Link        string
	Expired     bool
}

// DeleteResult summarizes a recursive delete.
type DeleteResult struct {
	Items        int // item records removed
	Shares       int // share tokens revoked alongside the items
	Blobs        int // blobs removed
	BlobFailures int // blobs whose removal failed and was skipped
}

// ImportResult summarizes an Import of a local directory tree.
type ImportResult struct {
	Directories int
	Files       int
	Bytes       int64
	Failures    int // entries skipped after an error, not counting their descendants
}

// Operation is an audit record of a mutating drive operation.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	OwnerID    string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}
