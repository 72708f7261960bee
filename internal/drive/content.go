package drive

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how many leading bytes are inspected to detect a content type.
const sniffLen = 3072

// maxNameLen bounds the sanitized name embedded in a storage key.
const maxNameLen = 120

// Upload stores the bytes read from r as a new file named name under parentID.
// An empty parentID means the owner's root.
//
// The blob is written before the record is inserted; if the insert fails the
// blob is removed again.
func (s *Service) Upload(ctx context.Context, owner, parentID, name string, r io.Reader) (*Item, error) {
	name = strings.TrimSpace(name)
	if err := validateName("upload", name); err != nil {
		return nil, err
	}

	// Fail fast on a bad parent before spooling any bytes.
	if parentID != "" {
		err := s.store.View(ctx, func(tx Tx) error {
			_, err := s.resolveParent(tx, owner, parentID, "upload")
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	key := s.storageKey(owner, name)
	size, contentType, err := s.putBlob(ctx, key, r)
	if err != nil {
		return nil, err
	}

	var created *Item
	err = s.store.Update(ctx, func(tx Tx) error {
		parent, err := s.resolveParent(tx, owner, parentID, "upload")
		if err != nil {
			return err
		}
		now := s.clock.Now()
		created = &Item{
			ID:          s.idgen.New(),
			Name:        name,
			ParentID:    parent.ID,
			Size:        size,
			OwnerID:     owner,
			StorageKey:  key,
			ContentType: contentType,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return tx.InsertItem(created)
	})
	if err != nil {
		s.discardBlob(ctx, owner, key)
		return nil, err
	}

	s.logger.Info("file uploaded", "owner", owner, "id", created.ID, "name", name, "size", size)
	return created, nil
}

// Replace swaps the content of an existing file. The old blob is removed after
// the record points at the new one; failure to remove it is only logged.
func (s *Service) Replace(ctx context.Context, owner, id string, r io.Reader) (*Item, error) {
	current, err := s.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if current.IsDirectory {
		return nil, newError(KindIsDirectory, "replace", id)
	}

	key := s.storageKey(owner, current.Name)
	size, contentType, err := s.putBlob(ctx, key, r)
	if err != nil {
		return nil, err
	}

	var oldKey string
	var updated *Item
	err = s.store.Update(ctx, func(tx Tx) error {
		item, err := ownedItem(tx, owner, id, "replace")
		if err != nil {
			return err
		}
		if item.IsDirectory {
			return newError(KindIsDirectory, "replace", id)
		}
		now := s.clock.Now()
		if err := tx.UpdateItemContent(item.ID, size, key, contentType, now); err != nil {
			return err
		}
		oldKey = item.StorageKey
		item.Size = size
		item.StorageKey = key
		item.ContentType = contentType
		item.UpdatedAt = now
		updated = item
		return nil
	})
	if err != nil {
		s.discardBlob(ctx, owner, key)
		return nil, err
	}

	if oldKey != "" {
		s.discardBlob(ctx, owner, oldKey)
	}

	s.logger.Info("file replaced", "owner", owner, "id", id, "size", size)
	return updated, nil
}

// DownloadRequest identifies an item to read and the credential used to read
// it. Token takes precedence over Owner when both are set.
type DownloadRequest struct {
	ItemID string
	Token  string
	Owner  string
}

// Download writes a file's content to w.
//
// With a token, the token must be valid and the item must be the shared item
// or lie beneath it. Without a token, Owner must own the item.
func (s *Service) Download(ctx context.Context, req DownloadRequest, w io.Writer) (*Item, error) {
	var item *Item
	err := s.store.View(ctx, func(tx Tx) error {
		var err error
		if req.Token != "" {
			item, err = s.sharedItem(tx, req.Token, req.ItemID, "download")
			return err
		}

		if req.Owner == "" {
			return newError(KindForbidden, "download", req.ItemID)
		}
		item, err = tx.GetItem(req.ItemID)
		if err != nil {
			return fmt.Errorf("finding item: %w", err)
		}
		if item == nil {
			return newError(KindNotFound, "download", req.ItemID)
		}
		if item.OwnerID != req.Owner {
			return newError(KindForbidden, "download", req.ItemID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if item.IsDirectory {
		return nil, newError(KindIsDirectory, "download", item.ID)
	}

	if err := s.blobs.Get(ctx, item.StorageKey, w); err != nil {
		if errors.Is(err, ErrLocked) {
			return nil, err
		}
		return nil, &Error{Kind: KindStorageFailure, Op: "download", ID: item.ID, Err: err}
	}

	s.logger.Debug("file downloaded", "id", item.ID, "via_token", req.Token != "")
	return item, nil
}

// storageKey builds the blob key for a new file: the owner's directory, a
// random prefix, then the sanitized name.
func (s *Service) storageKey(owner, name string) string {
	prefix := strings.ReplaceAll(s.idgen.New(), "-", "")
	return OwnerDir(owner) + "/" + prefix + "_" + SafeName(name)
}

// OwnerDir is the blob directory holding an owner's files. It hex-encodes the
// owner id, so distinct owners never share a directory and the result never
// starts with '_'.
func OwnerDir(owner string) string {
	return hex.EncodeToString([]byte(owner))
}

// putBlob spools r to a temporary file to learn its size and content type,
// then writes it to the blob store under key.
func (s *Service) putBlob(ctx context.Context, key string, r io.Reader) (int64, string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, "", fmt.Errorf("reading upload: %w", err)
	}
	head = head[:n]
	contentType := mimetype.Detect(head).String()

	tmp, err := os.CreateTemp("", "drive-upload-*")
	if err != nil {
		return 0, "", fmt.Errorf("creating spool file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		return 0, "", fmt.Errorf("spooling upload: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return 0, "", fmt.Errorf("rewinding spool file: %w", err)
	}

	if err := s.blobs.Put(ctx, key, tmp, size); err != nil {
		return 0, "", &Error{Kind: KindStorageFailure, Op: "upload", ID: key, Err: err}
	}
	return size, contentType, nil
}

// discardBlob removes a blob that is no longer referenced, logging failures.
func (s *Service) discardBlob(ctx context.Context, owner, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		s.logger.Warn("blob removal failed", "owner", owner, "key", key, "error", err)
	}
}

// SafeName reduces a caller-supplied file name to a single safe path segment:
// directory components are dropped, anything outside [A-Za-z0-9._-] becomes
// '_', leading dots are trimmed and the result is capped at 120 characters
// with the extension preserved.
func SafeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), "._")

	if len(out) > maxNameLen {
		ext := path.Ext(out)
		if len(ext) > 16 {
			ext = ""
		}
		out = out[:maxNameLen-len(ext)] + ext
	}
	if out == "" {
		return "file"
	}
	return out
}
