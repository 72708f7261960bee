package app

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// Environment overrides for the defaults below.
const (
	EnvConfigPath = "DRIVE_CONFIG_PATH"
	EnvHome       = "DRIVE_HOME"
	EnvOwner      = "DRIVE_OWNER"
)

// Defaults are where a drive command looks for its config and keeps its data
// when nothing more specific is given.
type Defaults struct {
	ConfigPath string // $DRIVE_CONFIG_PATH or ~/.config/drive.toml
	BaseDir    string // $DRIVE_HOME or ~/.local/share/drive
	LogDir     string
}

// GetDefaults resolves Defaults from the environment and the home directory.
func GetDefaults() (*Defaults, error) {
	d := &Defaults{
		ConfigPath: os.Getenv(EnvConfigPath),
		BaseDir:    os.Getenv(EnvHome),
	}

	if d.ConfigPath == "" || d.BaseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		if d.ConfigPath == "" {
			d.ConfigPath = filepath.Join(home, ".config", "drive.toml")
		}
		if d.BaseDir == "" {
			d.BaseDir = filepath.Join(home, ".local", "share", "drive")
		}
	}

	d.LogDir = filepath.Join(d.BaseDir, "log")
	return d, nil
}

// ResolveOwner picks the principal every namespace operation acts for:
// explicit (the --owner flag), then $DRIVE_OWNER, then the OS user name.
// Surrounding whitespace is ignored and a blank value falls through.
func ResolveOwner(explicit string) (string, error) {
	if owner := strings.TrimSpace(explicit); owner != "" {
		return owner, nil
	}
	if owner := strings.TrimSpace(os.Getenv(EnvOwner)); owner != "" {
		return owner, nil
	}

	u, err := currentUser()
	if err != nil {
		return "", fmt.Errorf("cannot determine owner (use --owner or $%s): %w", EnvOwner, err)
	}
	if u.Username == "" {
		return "", fmt.Errorf("current user has no name (use --owner or $%s)", EnvOwner)
	}
	return u.Username, nil
}

var currentUser = user.Current
