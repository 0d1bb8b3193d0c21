package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/strata/internal/logging"
	"github.com/thoreinstein/strata/pkg/store"
)

// noSave holds the value of the --no-save flag shared by the write verbs.
var noSave bool

func init() {
	for _, c := range []*cobra.Command{setCmd, mergeCmd, clearCmd, resetCmd} {
		c.Flags().BoolVar(&noSave, "no-save", false,
			"apply the change without persisting it (only useful with cached stores)")
		rootCmd.AddCommand(c)
	}
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in every writable store",
	Long: `Set key to value in every writable store, then save.

The value is parsed as JSON when it is an object or array. Other values
are coerced: true, false, null and numbers keep their type; anything else
is a string.`,
	Example: `  strata set database:port 5432
  strata set features '["search","export"]'
  strata set tls '{"enabled": true}'

See Also: strata merge, strata clear`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseValue(args[1])
		if err != nil {
			return err
		}
		return runWrite(cmd, "set", args[0], func(a *app) *store.Result {
			return a.SetAsync(cmd.Context(), args[0], value)
		})
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <key> <value>",
	Short: "Deep-merge a value into every writable store",
	Long: `Merge value into the mapping at key in every writable store, then save.
Nested mappings are merged recursively; other values replace what is
there.`,
	Example: `  strata merge database '{"pool": {"max": 20}}'

See Also: strata set`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseValue(args[1])
		if err != nil {
			return err
		}
		return runWrite(cmd, "merge", args[0], func(a *app) *store.Result {
			return a.MergeAsync(cmd.Context(), args[0], value)
		})
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear <key>",
	Short: "Remove a key from every writable store",
	Example: `  strata clear database:password

See Also: strata reset`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWrite(cmd, "clear", args[0], func(a *app) *store.Result {
			return a.ClearAsync(cmd.Context(), args[0])
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Empty every writable store",
	Long: `Replace the contents of every writable store with an empty mapping,
then save. Read-only stores such as env and defaults are untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWrite(cmd, "reset", "", func(a *app) *store.Result {
			return a.ResetAsync(cmd.Context())
		})
	},
}

func runWrite(cmd *cobra.Command, verb, key string, op func(*app) *store.Result) error {
	ctx := cmd.Context()
	logger := logging.FromContext(ctx)

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.snapshotWritable(ctx); err != nil {
		return err
	}
	if _, _, err := op(a).Wait(ctx); err != nil {
		return err
	}
	logger.Info("applied", slog.String("op", verb), slog.String("key", key))

	if noSave {
		return nil
	}
	if _, _, err := a.SaveAsync(ctx).Wait(ctx); err != nil {
		return err
	}
	logger.Info("saved", slog.Int("stores", len(a.Stores())))
	return nil
}
