package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/thoreinstein/strata/internal/errors"
)

var (
	genDocDir    string
	genDocFormat string
)

var genDocCmd = &cobra.Command{
	Use:    "gen-doc",
	Short:  "Generate reference documentation for the CLI",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if genDocDir == "" {
			return errors.NewUserError(errors.New("output directory is required"), "Pass --dir")
		}
		if err := os.MkdirAll(genDocDir, 0o755); err != nil {
			return errors.Wrap(err, "creating output directory")
		}

		root := cmd.Root()
		root.DisableAutoGenTag = true

		var err error
		switch genDocFormat {
		case "markdown", "md":
			err = doc.GenMarkdownTreeCustom(root, genDocDir, filePrepender, linkHandler)
		case "man":
			err = doc.GenManTree(root, &doc.GenManHeader{Title: "STRATA", Section: "1"}, genDocDir)
		default:
			return errors.NewUserError(errors.Newf("unknown doc format %q", genDocFormat), "Use markdown or man")
		}
		if err != nil {
			return errors.Wrapf(err, "generating %s docs", genDocFormat)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Documentation generated in %s\n", genDocDir)
		return nil
	},
}

func init() {
	genDocCmd.Flags().StringVarP(&genDocDir, "dir", "d", "", "output directory for documentation")
	genDocCmd.Flags().StringVar(&genDocFormat, "format", "markdown", "markdown or man")
	rootCmd.AddCommand(genDocCmd)
}

// filePrepender adds front matter so the pages drop into a docs site.
func filePrepender(filename string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	// strata_backup_list.md -> strata backup list
	title := strings.ReplaceAll(base, "_", " ")

	return fmt.Sprintf(`---
title: "%s"
description: "Reference for %s"
---
`, title, title)
}

func linkHandler(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return "/docs/cli/" + strings.ToLower(base) + "/"
}
