package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(saveCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Reload every store and print the merged tree",
	Long: `Reload every store from its backend and print the merged tree. Fails
when any store cannot be read, naming the store.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
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

		v, _, err := a.LoadAsync(ctx).Wait(ctx)
		if err != nil {
			return err
		}
		return printValue(cmd.OutOrStdout(), v, format)
	},
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Persist every store",
	Long: `Ask every store to persist its contents. File stores write through on
every change, so this mainly flushes cached, HTTP and etcd stores.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		_, _, err = a.SaveAsync(ctx).Wait(ctx)
		return err
	},
}
