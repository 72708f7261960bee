package app

import (
	"fmt"

	"drive-go/internal/config"
	"drive-go/internal/database"
	"drive-go/internal/encryption"
)

// InitKeys generates the encryption key pair configured in cfg, sealing the
// private key with passphrase.
func InitKeys(cfg *config.Config, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc == nil {
		return fmt.Errorf("encryption is disabled (set encryption.type to \"age\")")
	}
	if enc.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	return enc.Setup(passphrase)
}

// MigrateDatabase brings the configured database up to the latest schema.
func MigrateDatabase(cfg *config.Config) error {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	return nil
}

// CheckDatabase reports whether the configured database is at the latest schema.
func CheckDatabase(cfg *config.Config) error {
	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer store.Close()

	return store.CheckMigrations()
}
