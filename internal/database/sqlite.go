package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"drive-go/internal/database/migrations"
	"drive-go/internal/drive"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements drive.Store on SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens the database at path, or an in-memory database when
// path is ":memory:".
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is responsible
// for configuring it the way OpenConnection does.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenConnection opens a SQLite connection pool configured for the store.
// Foreign keys are enforced on every connection, write transactions begin
// IMMEDIATE so they serialize on the database lock, and lock waits block for
// up to five seconds instead of failing. An in-memory database is limited to
// one connection because each connection would otherwise see its own empty
// database.
func OpenConnection(path string) (*sql.DB, error) {
	params := "_foreign_keys=on&_txlock=immediate&_busy_timeout=5000"

	dsn := path + "?" + params
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Update runs fn in a write transaction.
func (s *SQLiteStore) Update(ctx context.Context, fn func(tx drive.Tx) error) error {
	return s.run(ctx, fn)
}

// View runs fn in a transaction that is always rolled back.
func (s *SQLiteStore) View(ctx context.Context, fn func(tx drive.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&sqliteTx{ctx: ctx, tx: tx})
}

func (s *SQLiteStore) run(ctx context.Context, fn func(tx drive.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Operation log

func (s *SQLiteStore) CreateOperation(ctx context.Context, operation, parameters, ownerID string, startedAt time.Time) (*drive.Operation, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (operation, parameters, owner_id, status, started_at) VALUES (?, ?, ?, 'running', ?)`,
		operation, parameters, ownerID, formatTime(startedAt))
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading operation id: %w", err)
	}
	return &drive.Operation{
		ID:         id,
		Operation:  operation,
		Parameters: parameters,
		OwnerID:    ownerID,
		Status:     "running",
		StartedAt:  startedAt.UTC(),
	}, nil
}

func (s *SQLiteStore) FinishOperation(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE operations SET status = ?, finished_at = ? WHERE id = ?`,
		status, formatTime(finishedAt), id)
	if err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return expectOneRow(res, "operation", fmt.Sprint(id))
}

func (s *SQLiteStore) ListOperations(ctx context.Context, limit int) ([]*drive.Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, parameters, owner_id, status, started_at, finished_at
		 FROM operations ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*drive.Operation
	for rows.Next() {
		var op drive.Operation
		var started string
		var finished sql.NullString
		if err := rows.Scan(&op.ID, &op.Operation, &op.Parameters, &op.OwnerID, &op.Status, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		if op.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if op.FinishedAt, err = parseNullTime(finished); err != nil {
			return nil, err
		}
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

// Path returns the database file path, empty for in-memory databases.
func (s *SQLiteStore) Path() string {
	if s.path == ":memory:" {
		return ""
	}
	return s.path
}

// Migrate brings the schema up to the latest version.
func (s *SQLiteStore) Migrate() error {
	return migrations.MigrateUp(s.db)
}

func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo writes a complete copy of the database to destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// helpers

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOneRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, errNoRows)
	}
	return nil
}

var errNoRows = errors.New("no rows affected")

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// Compile-time check that SQLiteStore implements drive.Store.
var _ drive.Store = (*SQLiteStore)(nil)
