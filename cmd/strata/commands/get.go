package commands

import (
	"fmt"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/strata/internal/errors"
	"github.com/thoreinstein/strata/internal/logging"
	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/tree"
)

var (
	getInteractive bool
	getRedact      bool
)

func init() {
	getCmd.Flags().BoolVarP(&getInteractive, "interactive", "i", false,
		"pick a key with a fuzzy finder")
	getCmd.Flags().BoolVar(&getRedact, "redact", false,
		"mask values whose key or content looks like a credential")
	rootCmd.AddCommand(getCmd)
}

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a merged configuration value",
	Long: `Print the value at key, taken from the highest-precedence store that
holds it. Mappings are deep-merged across every store. Without a key the
whole merged tree is printed.

Exits with status 3 when no store holds the key.`,
	Example: `  strata get database:host
  strata get database -o json
  strata get --interactive

See Also: strata set, strata stores`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGet,
}

// findLeaf picks one of leaves interactively. Tests replace it.
var findLeaf = func(leaves []tree.Leaf, addr keypath.Addressor) (int, error) {
	return fuzzyfinder.Find(
		leaves,
		func(i int) string { return addr.Format(leaves[i].Path) },
		fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			return fmt.Sprintf("%s\n\n%s", addr.Format(leaves[i].Path), cast.ToString(leaves[i].Value))
		}),
	)
}

func runGet(cmd *cobra.Command, args []string) error {
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

	var key any
	if len(args) == 1 {
		key = args[0]
	}

	if getInteractive {
		if key != nil {
			return errors.NewUserError(errors.New("--interactive does not take a key"), "")
		}
		picked, ok, err := pickKey(cmd, a)
		if err != nil || !ok {
			return err
		}
		key = picked
	}

	v, found, err := a.GetAsync(ctx, key).Wait(ctx)
	if err != nil {
		return err
	}
	if !found {
		return errors.Wrapf(errors.ErrNotFound, "%v", key)
	}

	if getRedact {
		last := ""
		if k, ok := key.(string); ok {
			last = a.Addressor().Parse(k).Last()
		} else if p, ok := key.(keypath.Path); ok {
			last = p.Last()
		}
		v = logging.Redact(last, v)
	}
	return printValue(cmd.OutOrStdout(), v, format)
}

// pickKey lets the user choose among every leaf of the merged tree. ok is
// false when the finder was aborted.
func pickKey(cmd *cobra.Command, a *app) (keypath.Path, bool, error) {
	ctx := cmd.Context()
	root, _, err := a.GetAsync(ctx, nil).Wait(ctx)
	if err != nil {
		return nil, false, err
	}

	leaves := tree.Flatten(root)
	if len(leaves) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No configuration values found.")
		return nil, false, nil
	}

	idx, err := findLeaf(leaves, a.Addressor())
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "interactive selection failed")
	}
	return leaves[idx].Path, true, nil
}
