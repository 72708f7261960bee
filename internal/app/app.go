package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"drive-go/internal/config"
	"drive-go/internal/database"
	"drive-go/internal/drive"
	"drive-go/internal/encryption"
	"drive-go/internal/fs"
	"drive-go/internal/vault"
)

// SnapshotPrefix is the blob key prefix for database snapshots. Storage keys
// of uploaded files never start with '_', so snapshots cannot collide with them.
const SnapshotPrefix = "_snapshots/"

// DriveApp is the application layer between the CLI and drive.Service.
// It constructs all dependencies from config, records mutating commands in
// the operation log, and manages the database lifecycle on Close.
type DriveApp struct {
	cfg     *config.Config
	store   *database.SQLiteStore
	blobs   drive.BlobStore
	sealed  *vault.EncryptedStore // nil when encryption is off
	service *drive.Service
	clock   drive.Clock
	owner   string
	op      *Operation
	logFile *os.File
}

// NewDriveApp creates a fully wired DriveApp from the given config.
// owner is the principal every namespace operation acts for, and operation
// identifies the CLI command being run (e.g. "Upload", "Delete").
// The caller must call Close when done.
func NewDriveApp(ctx context.Context, cfg *config.Config, owner, operation string) (*DriveApp, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	blobs, err := vault.NewBlobStoreFromConfig(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("creating blob store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	var sealed *vault.EncryptedStore
	if enc != nil {
		sealed = vault.NewEncryptedStore(blobs, enc)
		blobs = sealed
	}

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if err := store.CheckMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("database schema out of date (run 'drive db migrate'): %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID, level)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	clock := drive.RealClock{}
	svc := drive.NewService(store, blobs, &slogAdapter{l: logger}, clock, drive.UUIDGenerator{}, drive.RandomTokenGenerator{})
	svc.SetLinkBase(cfg.Share.LinkBase)

	return &DriveApp{
		cfg:     cfg,
		store:   store,
		blobs:   blobs,
		sealed:  sealed,
		service: svc,
		clock:   clock,
		owner:   owner,
		op:      NewOperation(operation, ""),
		logFile: logFile,
	}, nil
}

// persistOperation saves the operation to the database, giving it an auto-increment ID.
// This should only be called for mutating commands.
func (a *DriveApp) persistOperation(ctx context.Context, parameters ...string) error {
	if a.op.Persisted() {
		return nil
	}
	var parts []string
	for _, p := range parameters {
		if p != "" {
			parts = append(parts, p)
		}
	}
	a.op.Parameters = strings.Join(parts, " ")
	dbOp, err := a.store.CreateOperation(ctx, a.op.Operation, a.op.Parameters, a.owner, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// Locked reports whether downloads need Unlock first.
func (a *DriveApp) Locked() bool {
	return a.sealed != nil && a.sealed.Locked()
}

// Unlock opens the private key so encrypted blobs can be downloaded.
// It is a no-op when encryption is off.
func (a *DriveApp) Unlock(passphrase string) error {
	if a.sealed == nil {
		return nil
	}
	return a.sealed.Unlock(passphrase)
}

// ValidateSetup checks that the blob store is reachable and, if encryption
// is on, that keys exist.
func (a *DriveApp) ValidateSetup(ctx context.Context) error {
	return a.blobs.ValidateSetup(ctx)
}

// Mkdir creates a directory. An empty parentID means the owner's root.
func (a *DriveApp) Mkdir(ctx context.Context, parentID, name string) (*drive.Item, error) {
	if err := a.persistOperation(ctx, parentID, name); err != nil {
		return nil, err
	}
	item, err := a.service.Mkdir(ctx, a.owner, parentID, name)
	return item, a.op.Record(err)
}

// Upload stores the local file at localPath under parentID. The item takes
// the file's base name unless name is set.
func (a *DriveApp) Upload(ctx context.Context, parentID, localPath, name string) (*drive.Item, error) {
	if err := a.persistOperation(ctx, parentID, localPath); err != nil {
		return nil, err
	}
	if name == "" {
		name = filepath.Base(localPath)
	}

	f, err := openRegular(localPath)
	if err != nil {
		return nil, a.op.Record(err)
	}
	defer f.Close()

	item, err := a.service.Upload(ctx, a.owner, parentID, name, f)
	return item, a.op.Record(err)
}

// Replace swaps the content of file id with the local file at localPath.
func (a *DriveApp) Replace(ctx context.Context, id, localPath string) (*drive.Item, error) {
	if err := a.persistOperation(ctx, id, localPath); err != nil {
		return nil, err
	}

	f, err := openRegular(localPath)
	if err != nil {
		return nil, a.op.Record(err)
	}
	defer f.Close()

	item, err := a.service.Replace(ctx, a.owner, id, f)
	return item, a.op.Record(err)
}

// Import mirrors the local directory localDir beneath parentID, skipping
// the configured ignore patterns. When some entries fail the partial result
// is returned together with an error.
func (a *DriveApp) Import(ctx context.Context, parentID, localDir string) (*drive.ImportResult, error) {
	if err := a.persistOperation(ctx, parentID, localDir); err != nil {
		return nil, err
	}

	walker, err := fs.NewWalker(localDir, a.cfg.Import.Ignore)
	if err != nil {
		return nil, a.op.Record(fmt.Errorf("opening %s: %w", localDir, err))
	}

	res, err := a.service.Import(ctx, a.owner, parentID, walker)
	if err == nil && res.Failures > 0 {
		err = fmt.Errorf("%d entries could not be imported (see log)", res.Failures)
	}
	return res, a.op.Record(err)
}

// List returns the children of parentID; empty lists the owner's root.
func (a *DriveApp) List(ctx context.Context, parentID string) ([]*drive.Item, error) {
	return a.service.List(ctx, a.owner, parentID)
}

// Path returns the chain of items from the owner's root down to id.
func (a *DriveApp) Path(ctx context.Context, id string) ([]*drive.Item, error) {
	return a.service.Path(ctx, a.owner, id)
}

func (a *DriveApp) Move(ctx context.Context, id, newParentID string) (*drive.Item, error) {
	if err := a.persistOperation(ctx, id, newParentID); err != nil {
		return nil, err
	}
	item, err := a.service.Move(ctx, a.owner, id, newParentID)
	return item, a.op.Record(err)
}

func (a *DriveApp) Rename(ctx context.Context, id, name string) error {
	if err := a.persistOperation(ctx, id, name); err != nil {
		return err
	}
	return a.op.Record(a.service.Rename(ctx, a.owner, id, name))
}

func (a *DriveApp) Delete(ctx context.Context, id string) (*drive.DeleteResult, error) {
	if err := a.persistOperation(ctx, id); err != nil {
		return nil, err
	}
	res, err := a.service.Delete(ctx, a.owner, id)
	return res, a.op.Record(err)
}

// Download writes file id to w. With a token the owner is not consulted.
func (a *DriveApp) Download(ctx context.Context, id, token string, w io.Writer) (*drive.Item, error) {
	req := drive.DownloadRequest{ItemID: id, Token: token}
	if token == "" {
		req.Owner = a.owner
	}
	return a.service.Download(ctx, req, w)
}

// Share issues a token for id. A zero ttl uses the configured default;
// a negative ttl never expires.
func (a *DriveApp) Share(ctx context.Context, id string, ttl time.Duration, note string) (*drive.Share, error) {
	if err := a.persistOperation(ctx, id); err != nil {
		return nil, err
	}
	if ttl == 0 {
		ttl = time.Duration(a.cfg.Share.DefaultTTLDays) * 24 * time.Hour
	}
	sh, err := a.service.Share(ctx, a.owner, id, drive.ShareOptions{TTL: ttl, Note: note})
	return sh, a.op.Record(err)
}

func (a *DriveApp) Revoke(ctx context.Context, token string) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	return a.op.Record(a.service.Revoke(ctx, a.owner, token))
}

func (a *DriveApp) ListShares(ctx context.Context) ([]*drive.Share, error) {
	return a.service.ListShares(ctx, a.owner)
}

func (a *DriveApp) PurgeExpired(ctx context.Context) (int, error) {
	if err := a.persistOperation(ctx); err != nil {
		return 0, err
	}
	n, err := a.service.PurgeExpired(ctx)
	return n, a.op.Record(err)
}

func (a *DriveApp) Browse(ctx context.Context, token, id string) (*drive.Item, []*drive.Item, error) {
	return a.service.Browse(ctx, token, id)
}

// GetHistory returns the most recent operations.
func (a *DriveApp) GetHistory(ctx context.Context, limit int) ([]*drive.Operation, error) {
	return a.store.ListOperations(ctx, limit)
}

// Snapshot copies the database into the blob store and returns the key it
// was stored under.
func (a *DriveApp) Snapshot(ctx context.Context) (string, error) {
	if err := a.persistOperation(ctx); err != nil {
		return "", err
	}

	tmpFile, err := os.CreateTemp("", "drive-db-snapshot-*.db")
	if err != nil {
		return "", a.op.Record(fmt.Errorf("creating temp file for db snapshot: %w", err))
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if err := a.store.BackupTo(ctx, tmpPath); err != nil {
		return "", a.op.Record(err)
	}

	key := SnapshotPrefix + a.clock.Now().Format("20060102T150405Z") + ".db"
	if err := a.uploadSnapshot(ctx, tmpPath, key); err != nil {
		return "", a.op.Record(err)
	}
	return key, nil
}

// uploadSnapshot opens the temp DB file and uploads it to the blob store.
func (a *DriveApp) uploadSnapshot(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening db snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat db snapshot: %w", err)
	}

	if err := a.blobs.Put(ctx, key, f, info.Size()); err != nil {
		return fmt.Errorf("uploading db snapshot: %w", err)
	}
	return nil
}

// Close finalizes the operation and closes all resources.
// For persisted operations the operation record gets its final status first.
func (a *DriveApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.store.FinishOperation(context.Background(), a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// openRegular opens path for reading and refuses anything but a regular file.
func openRegular(path string) (*os.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	return os.Open(path)
}
