package encryption

import (
	"fmt"

	"drive-go/internal/config"
	"drive-go/internal/drive"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It returns nil for "none" (or an empty type): blobs are stored as uploaded.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (drive.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
