package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags first, then the rules that depend on which
// backend a tagged union selects.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateBackends(cfg)
}

func validateBackends(cfg *Config) error {
	if cfg.Database.Type == "sqlite" && cfg.Database.DataDir == "" {
		return fmt.Errorf("database: data_dir required for sqlite database")
	}

	switch cfg.Blob.Type {
	case "filesystem":
		if cfg.Blob.FSRoot == "" {
			return fmt.Errorf("blob: filesystem store requires fs_root to be set")
		}
	case "s3":
		if cfg.Blob.S3Bucket == "" {
			return fmt.Errorf("blob: s3 store requires s3_bucket to be set")
		}
		if cfg.Blob.S3Region == "" {
			return fmt.Errorf("blob: s3 store requires s3_region to be set")
		}
		if (cfg.Blob.S3AccessKeyID == "") != (cfg.Blob.S3SecretAccessKey == "") {
			return fmt.Errorf("blob: s3_access_key_id and s3_secret_access_key must be set together")
		}
	}

	if cfg.Encryption.Type == "age" {
		if cfg.Encryption.PublicKeyPath == "" || cfg.Encryption.PrivateKeyPath == "" {
			return fmt.Errorf("encryption: age requires public_key_path and private_key_path")
		}
	}
	return nil
}

// formatValidationError reports the first failing field.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := verrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)", e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
