package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/strata/internal/backup"
	"github.com/thoreinstein/strata/internal/errors"
	"github.com/thoreinstein/strata/internal/logging"
	"github.com/thoreinstein/strata/pkg/keypath"
)

var backupListJSON bool

func init() {
	backupListCmd.Flags().BoolVar(&backupListJSON, "json", false, "output as JSON")
	backupCmd.AddCommand(backupListCmd, backupCreateCmd, backupRestoreCmd)
	rootCmd.AddCommand(backupCmd)
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage store snapshots",
	Long: `Snapshots of writable stores are taken automatically before set, merge,
clear, reset and edit change them. Only the newest backup.retention
snapshots are kept per store.

Disable automatic snapshots with backup.enabled: false in config.yaml.`,
}

var backupListCmd = &cobra.Command{
	Use:   "list <store>",
	Short: "List the snapshots of a store, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return errors.NewConfigError(configLoadErr)
		}
		manifests, err := backupManager().List(args[0])
		if errors.Is(err, backup.ErrNoBackupsFound) {
			manifests, err = nil, nil
		}
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if backupListJSON {
			if manifests == nil {
				manifests = []backup.Manifest{}
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(manifests)
		}

		if len(manifests) == 0 {
			fmt.Fprintf(w, "No backups of %q.\n", args[0])
			return nil
		}
		header := color.New(color.Bold)
		if !logging.SupportsColor(w) {
			header.DisableColor()
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, header.Sprint("ID\tCREATED\tKEYS\tVERSION"))
		for _, m := range manifests {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
				m.ID, m.CreatedAt.Local().Format("2006-01-02 15:04:05"), m.Keys, m.StrataVersion)
		}
		return tw.Flush()
	},
}

var backupCreateCmd = &cobra.Command{
	Use:   "create <store>",
	Short: "Snapshot a store now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := findEntry(a, args[0])
		if err != nil {
			return err
		}
		t, _, err := entry.Store.Get(ctx, keypath.Root).Wait(ctx)
		if err != nil {
			return err
		}
		m, err := backupManager().Backup(entry.Name, t)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created backup %s (%d keys)\n", m.ID, m.Keys)
		return nil
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <store> [backup-id]",
	Short: "Replace a store's contents with a snapshot",
	Long: `Replace the contents of a writable store with one of its snapshots and
save it. Without an ID the newest snapshot is used. The current contents
are snapshotted first, so a restore can itself be undone.`,
	Example: `  strata backup restore user
  strata backup restore user 20260301T120000.000000000

See Also: strata backup list`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := ""
		if len(args) == 2 {
			id = args[1]
		}

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		entry, err := findEntry(a, args[0])
		if err != nil {
			return err
		}
		if entry.ReadOnly {
			return errors.NewUserError(
				errors.Newf("store %q is read-only", entry.Name),
				"Only writable stores can be restored",
			)
		}

		mgr := backupManager()
		t, m, err := mgr.Restore(entry.Name, id)
		if err != nil {
			if errors.Is(err, backup.ErrNoBackupsFound) {
				return errors.NewUserError(err, "Run: strata backup list "+entry.Name)
			}
			return err
		}

		if err := backup.NewSession(mgr).EnsureBackedUp(ctx, entry.Name, entry.Store); err != nil {
			return err
		}
		if _, _, err := entry.Store.Set(ctx, keypath.Root, t).Wait(ctx); err != nil {
			return err
		}
		if _, _, err := entry.Store.Save(ctx).Wait(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %q from backup %s\n", entry.Name, m.ID)
		return nil
	},
}
