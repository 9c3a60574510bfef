package app

import (
	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/cmd/biorecords/cmd/dump"
	"github.com/biorecords/biorecords/cmd/biorecords/cmd/export"
	"github.com/biorecords/biorecords/cmd/biorecords/cmd/listings"
	"github.com/biorecords/biorecords/cmd/biorecords/cmd/load"
	"github.com/biorecords/biorecords/cmd/biorecords/cmd/migrate"
	"github.com/biorecords/biorecords/cmd/biorecords/cmd/report"
	"github.com/biorecords/biorecords/cmd/biorecords/cmd/serve"
	"github.com/biorecords/biorecords/cmd/biorecords/cmd/taxa"
	"github.com/biorecords/biorecords/cmd/biorecords/cmd/version"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(serve.NewCommand(a))
	rootCmd.AddCommand(migrate.NewCommand(a))

	// Data commands
	rootCmd.AddCommand(load.NewCommand(a))
	rootCmd.AddCommand(dump.NewCommand(a))
	rootCmd.AddCommand(export.NewCommand(a))

	// Record commands
	rootCmd.AddCommand(taxa.NewCommand(a))
	rootCmd.AddCommand(listings.NewCommand(a))
	rootCmd.AddCommand(report.NewCommand(a))

	rootCmd.AddCommand(version.NewCommand(a))
}
