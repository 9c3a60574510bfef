// Package report provides the Markdown conservation profile command.
package report

import (
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/cmd/application"
	profile "github.com/biorecords/biorecords/internal/report"
	"github.com/biorecords/biorecords/pkg/errors"
)

// NewCommand creates the report command.
func NewCommand(app application.Application) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "report taxon|community <id>",
		GroupID: "records",
		Short:   "Render a Markdown conservation profile",
		Long: `Report renders the conservation profile of a taxon (by name id) or a
community (by code) as Markdown: names, conservation status, active
listings, documents, threats and management actions.`,
		Args: cobra.ExactArgs(2),
		Example: `  biorecords report taxon 12345 > banksia.md
  biorecords report community SCP01 -f scp01.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if file != "" {
				fh, err := os.Create(file)
				if err != nil {
					return errors.WrapIO("create", file, err)
				}
				defer fh.Close()
				w = fh
			}

			switch args[0] {
			case "taxon":
				nameID, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return errors.NewValidationError("name_id", args[1], "must be an integer")
				}
				return profile.Taxon(ctx, st, nameID, w)
			case "community":
				return profile.Community(ctx, st, args[1], w)
			default:
				return errors.NewValidationError("subject", args[0], "must be taxon or community")
			}
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to this file instead of stdout")
	return cmd
}
