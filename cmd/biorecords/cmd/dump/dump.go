// Package dump provides the fixture dump command.
package dump

import (
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/cmd/application"
	"github.com/biorecords/biorecords/internal/cmd/output"
	"github.com/biorecords/biorecords/internal/fixtures"
	"github.com/biorecords/biorecords/pkg/errors"
)

// NewCommand creates the dump command.
func NewCommand(app application.Application) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "dump [section]...",
		GroupID: "data",
		Short:   "Write records as a YAML or JSON fixture",
		Long: `Dump reads the named fixture sections from the database and writes them
in the format load accepts. Without arguments every section is written.

Sections: ` + strings.Join(fixtures.Sections(), ", ") + `

The output is YAML unless --output json is given.`,
		Example: `  biorecords dump taxa vernaculars > taxa.yaml
  biorecords dump -o json listings
  biorecords dump -f backup.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}
			f, err := fixtures.Dump(ctx, st, args...)
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

			if output.Format(app.OutputFormat()) == output.FormatJSON {
				return output.NewFormatter(output.FormatJSON).Format(w, f)
			}
			data, err := fixtures.Marshal(f)
			if err != nil {
				return err
			}
			if _, err := w.Write(data); err != nil {
				return errors.WrapIO("write", file, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Write to this file instead of stdout")
	return cmd
}
