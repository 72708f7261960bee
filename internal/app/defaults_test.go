package app

import (
	"errors"
	"os/user"
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/custom/config.toml")
		t.Setenv(EnvHome, "/custom/drive")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		want := Defaults{ConfigPath: "/custom/config.toml", BaseDir: "/custom/drive", LogDir: "/custom/drive/log"}
		if *d != want {
			t.Errorf("GetDefaults() = %+v, want %+v", *d, want)
		}
	})

	t.Run("home directory fallback", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv(EnvConfigPath, "")
		t.Setenv(EnvHome, "")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		base := filepath.Join(home, ".local", "share", "drive")
		want := Defaults{
			ConfigPath: filepath.Join(home, ".config", "drive.toml"),
			BaseDir:    base,
			LogDir:     filepath.Join(base, "log"),
		}
		if *d != want {
			t.Errorf("GetDefaults() = %+v, want %+v", *d, want)
		}
	})

	t.Run("both overrides need no home directory", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/etc/drive.toml")
		t.Setenv(EnvHome, "/srv/drive")
		t.Setenv("HOME", "")

		d, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() error = %v", err)
		}
		if d.LogDir != "/srv/drive/log" {
			t.Errorf("LogDir = %q", d.LogDir)
		}
	})
}

func TestResolveOwner(t *testing.T) {
	stubUser := func(t *testing.T, u *user.User, err error) {
		t.Helper()
		orig := currentUser
		currentUser = func() (*user.User, error) { return u, err }
		t.Cleanup(func() { currentUser = orig })
	}

	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(EnvOwner, "env-owner")
		stubUser(t, &user.User{Username: "os-user"}, nil)

		got, err := ResolveOwner("  alice ")
		if err != nil || got != "alice" {
			t.Errorf("ResolveOwner() = %q, %v; want alice", got, err)
		}
	})

	t.Run("environment before os user", func(t *testing.T) {
		t.Setenv(EnvOwner, "env-owner")
		stubUser(t, &user.User{Username: "os-user"}, nil)

		got, err := ResolveOwner("")
		if err != nil || got != "env-owner" {
			t.Errorf("ResolveOwner() = %q, %v; want env-owner", got, err)
		}
	})

	t.Run("blank values fall through to os user", func(t *testing.T) {
		t.Setenv(EnvOwner, "   ")
		stubUser(t, &user.User{Username: "os-user"}, nil)

		got, err := ResolveOwner(" ")
		if err != nil || got != "os-user" {
			t.Errorf("ResolveOwner() = %q, %v; want os-user", got, err)
		}
	})

	t.Run("no owner anywhere", func(t *testing.T) {
		t.Setenv(EnvOwner, "")
		lookup := errors.New("no passwd entry")
		stubUser(t, nil, lookup)

		if _, err := ResolveOwner(""); !errors.Is(err, lookup) {
			t.Errorf("ResolveOwner() error = %v, want wrapped %v", err, lookup)
		}
	})
}
