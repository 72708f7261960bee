package database

import (
	"fmt"
	"os"
	"path/filepath"

	"drive-go/internal/config"
)

// DatabaseFileName is the SQLite file created inside DatabaseConfig.DataDir.
const DatabaseFileName = "drive.db"

// NewStoreFromConfig creates a SQLiteStore based on the database config type.
// A "memory" store is migrated immediately since it starts empty every time.
func NewStoreFromConfig(cfg config.DatabaseConfig) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, DatabaseFileName))
	case "memory":
		s, err := NewSQLiteStore(":memory:")
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(); err != nil {
			s.Close()
			return nil, fmt.Errorf("migrating in-memory database: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
