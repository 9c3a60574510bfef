// Package migrate provides the schema migration command.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/cmd/application"
	"github.com/biorecords/biorecords/internal/cmd/alerts"
	"github.com/biorecords/biorecords/internal/cmd/globals"
	"github.com/biorecords/biorecords/internal/store"
)

// NewCommand creates the migrate command.
func NewCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:     "migrate",
		GroupID: "core",
		Short:   "Apply pending database migrations",
		Long: `Migrate creates the database if needed and applies every pending schema
migration. Other commands migrate on open as well; this command only
reports the resulting schema version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			v, err := st.Version(ctx)
			if err != nil {
				return err
			}
			app.Logger().Debug().Int("version", v).Str("database", app.Database()).Msg("Migrations applied")

			flags := globals.Parse(cmd)
			out := alerts.NewWriter(cmd.OutOrStdout(), flags.NoColor, flags.Quiet)
			return out.Write(alerts.NewSuccess(fmt.Sprintf("Database %s at schema version %d of %d",
				app.Database(), v, store.LatestVersion())))
		},
	}
}
