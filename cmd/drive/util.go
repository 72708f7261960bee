package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"drive-go/internal/config"

	"golang.org/x/term"
)

// readPassphrase prompts on stderr and reads a passphrase without echo.
func readPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("a passphrase is required but stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(pass), nil
}

// readNewPassphrase asks for a passphrase twice and requires both to match.
func readNewPassphrase() (string, error) {
	pass, err := readPassphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	if pass == "" {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	confirm, err := readPassphrase("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if pass != confirm {
		return "", fmt.Errorf("passphrases do not match")
	}
	return pass, nil
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func blobLocation(cfg config.BlobConfig) string {
	switch cfg.Type {
	case "filesystem":
		return cfg.FSRoot
	case "s3":
		return "s3://" + cfg.S3Bucket + "/" + cfg.S3Prefix
	default:
		return cfg.Name
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func dirOf(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "."
	}
	return filepath.Dir(abs)
}
