// Package export provides the CSV export command.
package export

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/cmd/application"
	"github.com/biorecords/biorecords/internal/cmd/alerts"
	"github.com/biorecords/biorecords/internal/cmd/globals"
	csvexport "github.com/biorecords/biorecords/internal/export"
	"github.com/biorecords/biorecords/pkg/errors"
)

// NewCommand creates the export command.
func NewCommand(app application.Application) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:       "export threats|actions|documents",
		GroupID:   "data",
		Short:     "Export management records and documents as CSV",
		ValidArgs: []string{string(csvexport.Threats), string(csvexport.Actions), string(csvexport.Documents)},
		Args:      cobra.ExactArgs(1),
		Example: `  biorecords export threats > threats.csv
  biorecords export documents -f documents.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := csvexport.ParseKind(args[0])
			if err != nil {
				return err
			}
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

			n, err := csvexport.Write(ctx, st, kind, w)
			if err != nil {
				return err
			}
			app.Logger().Debug().Str("export", string(kind)).Int("rows", n).Msg("Export written")

			if file == "" {
				return nil
			}
			flags := globals.Parse(cmd)
			return alerts.NewWriter(cmd.ErrOrStderr(), flags.NoColor, flags.Quiet).
				Write(alerts.NewSuccess(fmt.Sprintf("Exported %d %s to %s", n, kind, file)))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to this file instead of stdout")
	return cmd
}
