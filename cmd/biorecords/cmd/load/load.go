// Package load provides the fixture loading command.
package load

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/cmd/application"
	"github.com/biorecords/biorecords/internal/cmd/alerts"
	"github.com/biorecords/biorecords/internal/cmd/globals"
	"github.com/biorecords/biorecords/internal/cmd/output"
	"github.com/biorecords/biorecords/internal/cmd/table"
	"github.com/biorecords/biorecords/internal/fixtures"
)

// NewCommand creates the load command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "load <file.yaml|dir>...",
		GroupID: "data",
		Short:   "Load YAML fixtures into the database",
		Long: `Load parses YAML fixture files and inserts their records in dependency
order: users, lookups, lists and categories, taxa (parents before
children), names, communities, listings, documents, management records,
field records and observations.

Directories are expanded to the *.yaml and *.yml files they contain, in
name order. Record ids inside fixtures are local to one load; references
between records are remapped to the stored ids.`,
		Example: `  biorecords load fixtures/
  biorecords load lists.yaml taxa.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}

			counts, err := fixtures.Load(ctx, st, args...)
			if err != nil {
				return err
			}

			total := 0
			rows := make([][]string, 0, len(counts))
			for _, c := range counts {
				total += c.Records
				rows = append(rows, []string{c.Section, fmt.Sprint(c.Records)})
			}
			app.Logger().Info().Int("records", total).Int("sections", len(counts)).Msg("Fixtures loaded")

			tbl := table.Data{
				Headers:         []string{"Section", "Records"},
				Rows:            rows,
				ColumnAlignment: []table.Align{table.AlignLeft, table.AlignRight},
			}
			if err := output.Records(cmd.OutOrStdout(), app.OutputFormat(), tbl, counts); err != nil {
				return err
			}

			flags := globals.Parse(cmd)
			return alerts.NewWriter(cmd.ErrOrStderr(), flags.NoColor, flags.Quiet).
				Write(alerts.NewSuccess(fmt.Sprintf("Loaded %d records", total)))
		},
	}
}
