package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/strata/internal/backup"
	"github.com/thoreinstein/strata/internal/editor"
	"github.com/thoreinstein/strata/internal/errors"
	"github.com/thoreinstein/strata/pkg/aggregate"
	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/store/file"
)

func init() {
	rootCmd.AddCommand(editCmd)
}

var editCmd = &cobra.Command{
	Use:   "edit <store>",
	Short: "Edit one store in $EDITOR",
	Long: `Open a single store in your editor.

File stores are opened directly and reloaded afterwards. Other writable
stores are written to a temporary file in the --output format; when the
editor exits with changes, the result replaces the store's contents and
is saved.

The editor is $STRATA_EDITOR, $EDITOR or $VISUAL, falling back to nano
or vi.`,
	Example: `  strata edit user
  EDITOR="code --wait" strata edit remote -o json

See Also: strata stores`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	format, err := outputFormat()
	if err != nil {
		return err
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
	if !entry.ReadOnly && cfg.Backup.Enabled {
		session := backup.NewSession(backupManager())
		if err := session.EnsureBackedUp(ctx, entry.Name, entry.Store); err != nil {
			return err
		}
	}
	streams := editor.Streams{In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}

	if fs, ok := store.As[*file.Store](entry.Store); ok {
		if err := editor.Open(ctx, fs.Path(), streams); err != nil {
			return err
		}
		_, _, err := entry.Store.Load(ctx).Wait(ctx)
		return err
	}

	if entry.ReadOnly {
		return errors.NewUserError(
			errors.Newf("store %q is read-only", entry.Name),
			"Edit the source it reads from instead",
		)
	}

	current, _, err := entry.Store.Get(ctx, keypath.Root).Wait(ctx)
	if err != nil {
		return err
	}
	edited, changed, err := editor.EditValue(ctx, current, format, streams)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(cmd.ErrOrStderr(), "No changes.")
		return nil
	}

	if _, _, err := entry.Store.Set(ctx, keypath.Root, edited).Wait(ctx); err != nil {
		return err
	}
	_, _, err = entry.Store.Save(ctx).Wait(ctx)
	return err
}

func findEntry(a *app, name string) (aggregate.Entry, error) {
	for _, e := range a.Stores() {
		if e.Name == name {
			return e, nil
		}
	}
	return aggregate.Entry{}, errors.NewUserError(
		errors.Newf("no store named %q", name),
		"Run: strata stores",
	)
}
