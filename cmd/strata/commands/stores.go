package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/strata/internal/logging"
	"github.com/thoreinstein/strata/pkg/aggregate"
	"github.com/thoreinstein/strata/pkg/keypath"
	"github.com/thoreinstein/strata/pkg/store"
	"github.com/thoreinstein/strata/pkg/store/dir"
	"github.com/thoreinstein/strata/pkg/store/etcd"
	"github.com/thoreinstein/strata/pkg/store/file"
	"github.com/thoreinstein/strata/pkg/store/httpstore"
)

var storesJSON bool

func init() {
	storesCmd.Flags().BoolVar(&storesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(storesCmd)
}

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "List the store stack, highest precedence first",
	Long: `List every registered store in the order reads consult them. Overrides
come first and defaults last; within a tier the first declared store wins.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		infos := describeStores(a)
		if storesJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(infos)
		}
		return printStores(cmd.OutOrStdout(), infos)
	},
}

type storeInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Tier     string `json:"tier"`
	ReadOnly bool   `json:"readonly"`
	Sync     bool   `json:"sync"`
	Source   string `json:"source,omitempty"`
}

func describeStores(a *app) []storeInfo {
	entries := a.Stores()
	infos := make([]storeInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, storeInfo{
			Name:     e.Name,
			Type:     a.types[e.Name],
			Tier:     e.Tier.String(),
			ReadOnly: e.ReadOnly,
			Sync:     e.Store.Sync(),
			Source:   source(e),
		})
	}
	return infos
}

// source describes where an entry's data lives.
func source(e aggregate.Entry) string {
	if s, ok := store.As[*file.Store](e.Store); ok {
		return s.Path()
	}
	if s, ok := store.As[*dir.Store](e.Store); ok {
		return "env=" + s.Env()
	}
	if s, ok := store.As[*httpstore.Store](e.Store); ok {
		return logging.MaskURL(s.URL(keypath.Root))
	}
	if s, ok := store.As[*etcd.Store](e.Store); ok {
		src := "key=" + s.Key()
		if peers := s.Peers(); len(peers) > 0 {
			src += " peers=" + strings.Join(peers, ",")
		}
		return src
	}
	return ""
}

func printStores(w io.Writer, infos []storeInfo) error {
	if len(infos) == 0 {
		fmt.Fprintln(w, "No stores configured.")
		return nil
	}

	header := color.New(color.Bold)
	if !logging.SupportsColor(w) {
		header.DisableColor()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header.Sprint("NAME\tTYPE\tTIER\tACCESS\tMODE\tSOURCE"))
	for _, s := range infos {
		access := "rw"
		if s.ReadOnly {
			access = "ro"
		}
		mode := "async"
		if s.Sync {
			mode = "sync"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", s.Name, s.Type, s.Tier, access, mode, s.Source)
	}
	return tw.Flush()
}
