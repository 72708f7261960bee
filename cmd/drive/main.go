package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"drive-go/internal/app"
	"drive-go/internal/config"
	"drive-go/internal/drive"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file from the default location.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates a DriveApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Upload", "Delete").
func newApp(cmd *cobra.Command, operation string) (*app.DriveApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	flagOwner, _ := cmd.Flags().GetString("owner")
	owner, err := app.ResolveOwner(flagOwner)
	if err != nil {
		return nil, err
	}

	a, err := app.NewDriveApp(cmd.Context(), cfg, owner, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:          "drive",
	Short:        "Personal cloud drive",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and database",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := app.MigrateDatabase(cfg); err != nil {
			return err
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Database:   %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Blobs:      %s %s\n", cfg.Blob.Type, blobLocation(cfg.Blob))
		fmt.Printf("Encryption: %s\n", orDefault(cfg.Encryption.Type, "none"))
		fmt.Printf("Link Base:  %s\n", orDefault(cfg.Share.LinkBase, "(relative)"))
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the blob store and encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ValidateSetup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ValidateSetup(cmd.Context()); err != nil {
			return fmt.Errorf("setup check failed: %w", err)
		}
		fmt.Println("Setup OK")
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		pass, err := readNewPassphrase()
		if err != nil {
			return err
		}
		if err := app.InitKeys(cfg, pass); err != nil {
			return fmt.Errorf("initializing keys: %w", err)
		}

		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the namespace database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.MigrateDatabase(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date")
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the database schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.CheckDatabase(cfg); err != nil {
			return err
		}
		fmt.Println("Database is up to date")
		return nil
	},
}

var dbSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Copy the database into the blob store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Snapshot")
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.Snapshot(cmd.Context())
		if err != nil {
			return fmt.Errorf("snapshot failed: %w", err)
		}
		fmt.Printf("Snapshot stored as %s\n", key)
		return nil
	},
}

// namespace commands
var mkdirCmd = &cobra.Command{
	Use:   "mkdir [NAME]",
	Short: "Create a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")

		a, err := newApp(cmd, "Mkdir")
		if err != nil {
			return err
		}
		defer a.Close()

		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		item, err := a.Mkdir(cmd.Context(), parent, name)
		if err != nil {
			return err
		}
		fmt.Printf("Created %s  %s\n", item.ID, item.Name)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload a local file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")
		name, _ := cmd.Flags().GetString("name")

		a, err := newApp(cmd, "Upload")
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.Upload(cmd.Context(), parent, args[0], name)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s  %s  %d bytes  %s\n", item.ID, item.Name, item.Size, item.ContentType)
		return nil
	},
}

var replaceCmd = &cobra.Command{
	Use:   "replace ID FILE",
	Short: "Replace a file's content",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Replace")
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.Replace(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Replaced %s  %d bytes\n", item.ID, item.Size)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import DIR",
	Short: "Import a local directory tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent, _ := cmd.Flags().GetString("parent")

		a, err := newApp(cmd, "Import")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Import(cmd.Context(), parent, args[0])
		if res != nil {
			fmt.Printf("Imported %d director(ies), %d file(s), %d bytes\n", res.Directories, res.Files, res.Bytes)
		}
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		return nil
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls [ID]",
	Short: "List a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "List")
		if err != nil {
			return err
		}
		defer a.Close()

		parent := ""
		if len(args) > 0 {
			parent = args[0]
		}
		items, err := a.List(cmd.Context(), parent)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("Empty directory.")
			return nil
		}
		for _, it := range items {
			kind := "-"
			if it.IsDirectory {
				kind = "d"
			}
			fmt.Printf("%s  %-36s  %10d  %s  %s\n",
				kind,
				it.ID,
				it.Size,
				it.UpdatedAt.Format("2006-01-02 15:04:05"),
				it.Name,
			)
		}
		return nil
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv ID [PARENT_ID]",
	Short: "Move an item (to the root if no parent is given)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Move")
		if err != nil {
			return err
		}
		defer a.Close()

		dest := ""
		if len(args) > 1 {
			dest = args[1]
		}
		if _, err := a.Move(cmd.Context(), args[0], dest); err != nil {
			return err
		}
		fmt.Printf("Moved %s\n", args[0])
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename ID NAME",
	Short: "Rename an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Rename")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Rename(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %s\n", args[0], args[1])
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete an item and everything beneath it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Delete")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Delete(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d item(s), %d share(s), %d blob(s)\n", res.Items, res.Shares, res.Blobs)
		if res.BlobFailures > 0 {
			fmt.Printf("Warning: %d blob(s) could not be removed, see the log\n", res.BlobFailures)
		}
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download ID [DEST]",
	Short: "Download a file (to stdout if no destination is given)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, _ := cmd.Flags().GetString("token")

		a, err := newApp(cmd, "Download")
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Locked() {
			pass, err := readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
			if err := a.Unlock(pass); err != nil {
				return err
			}
		}

		if len(args) < 2 {
			_, err := a.Download(cmd.Context(), args[0], token, os.Stdout)
			return err
		}

		// stage next to DEST, then rename into place
		dest := args[1]
		tmp, err := os.CreateTemp(dirOf(dest), ".drive-download-*")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		defer os.Remove(tmp.Name())

		item, err := a.Download(cmd.Context(), args[0], token, tmp)
		if cerr := tmp.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		if err := os.Rename(tmp.Name(), dest); err != nil {
			return fmt.Errorf("moving download into place: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Downloaded %s (%d bytes) to %s\n", item.Name, item.Size, dest)
		return nil
	},
}

// share command
var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Manage share links",
}

var shareIssueCmd = &cobra.Command{
	Use:   "issue ID",
	Short: "Create a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		never, _ := cmd.Flags().GetBool("never")
		note, _ := cmd.Flags().GetString("note")
		if never {
			ttl = -1
		}

		a, err := newApp(cmd, "ShareIssue")
		if err != nil {
			return err
		}
		defer a.Close()

		sh, err := a.Share(cmd.Context(), args[0], ttl, note)
		if err != nil {
			return err
		}
		fmt.Printf("Token:   %s\n", sh.Token)
		fmt.Printf("Link:    %s\n", sh.Link)
		fmt.Printf("Expires: %s\n", formatExpiry(sh.ExpiresAt))
		return nil
	},
}

var shareRevokeCmd = &cobra.Command{
	Use:   "revoke TOKEN",
	Short: "Revoke a share link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ShareRevoke")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Revoke(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("Share revoked")
		return nil
	},
}

var shareListCmd = &cobra.Command{
	Use:   "list",
	Short: "List share links",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ShareList")
		if err != nil {
			return err
		}
		defer a.Close()

		shares, err := a.ListShares(cmd.Context())
		if err != nil {
			return err
		}
		if len(shares) == 0 {
			fmt.Println("No shares.")
			return nil
		}
		for _, sh := range shares {
			state := "active "
			if sh.Expired {
				state = "expired"
			}
			fmt.Printf("%s  %s  %-20s  %s  %s\n", sh.Token, state, formatExpiry(sh.ExpiresAt), sh.ItemName, sh.Note)
		}
		return nil
	},
}

var sharePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired share links",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "SharePurge")
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d expired share(s)\n", n)
		return nil
	},
}

var shareBrowseCmd = &cobra.Command{
	Use:   "browse TOKEN [ID]",
	Short: "Look inside a shared item",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ShareBrowse")
		if err != nil {
			return err
		}
		defer a.Close()

		id := ""
		if len(args) > 1 {
			id = args[1]
		}
		item, children, err := a.Browse(cmd.Context(), args[0], id)
		if err != nil {
			if errors.Is(err, drive.ErrExpired) {
				return fmt.Errorf("share link has expired")
			}
			return err
		}

		fmt.Printf("%s  %s\n", item.ID, item.Name)
		for _, c := range children {
			suffix := ""
			if c.IsDirectory {
				suffix = "/"
			}
			fmt.Printf("  %s  %s%s\n", c.ID, c.Name, suffix)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "GetHistory")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.GetHistory(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt != nil {
				d := op.FinishedAt.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %-10s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.OwnerID,
				op.StartedAt.Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("owner", "", "Principal to act as (default: $DRIVE_OWNER or the current user)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configCheckCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbSnapshotCmd)

	// share subcommands
	shareCmd.AddCommand(shareIssueCmd)
	shareIssueCmd.Flags().Duration("ttl", 0, "Link lifetime (default: share.default_ttl_days)")
	shareIssueCmd.Flags().Bool("never", false, "Link never expires")
	shareIssueCmd.Flags().String("note", "", "Free-form note shown in share list")
	shareCmd.AddCommand(shareRevokeCmd)
	shareCmd.AddCommand(shareListCmd)
	shareCmd.AddCommand(sharePurgeCmd)
	shareCmd.AddCommand(shareBrowseCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(mkdirCmd)
	mkdirCmd.Flags().StringP("parent", "p", "", "Parent directory ID (default: root)")
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringP("parent", "p", "", "Parent directory ID (default: root)")
	uploadCmd.Flags().String("name", "", "Name in the drive (default: local file name)")
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringP("parent", "p", "", "Parent directory ID (default: root)")
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().String("token", "", "Download through a share token instead of as owner")
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
