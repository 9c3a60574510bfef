package app

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/internal/cmd/globals"
	"github.com/biorecords/biorecords/internal/cmd/output"
	"github.com/biorecords/biorecords/pkg/logging"
)

// Execute runs the biorecords CLI application with the given arguments.
func (a *App) Execute(ctx context.Context, args []string) error {
	rootCmd := a.createRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// createRootCommand creates the root cobra command with all subcommands.
func (a *App) createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "biorecords",
		Short:   "Biodiversity records and conservation status service",
		Version: a.version,
		Long: `biorecords keeps the taxonomic tree, conservation listings, management
records and field observations of a biodiversity program in a single
SQLite database, and serves them over a REST API.

Records are loaded from YAML fixtures, reported on as Markdown conservation
profiles and exported as CSV.`,
		PersistentPreRunE: a.setupCommand,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}

	rootCmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "data", Title: "Data Commands:"})
	rootCmd.AddGroup(&cobra.Group{ID: "records", Title: "Record Commands:"})

	globals.AddFlags(rootCmd)

	rootCmd.SetVersionTemplate("biorecords {{.Version}}\n")

	a.registerCommands(rootCmd)
	return rootCmd
}

// setupCommand is called before any command runs. It reloads the config
// when --config names a file, applies the global flags and rebuilds the
// logger.
func (a *App) setupCommand(cmd *cobra.Command, _ []string) error {
	flags := globals.Parse(cmd)

	if flags.ConfigFile != "" {
		config, err := LoadConfig(flags.ConfigFile)
		if err != nil {
			return err
		}
		a.config = config
	}
	a.config.UpdateFromFlags(flags)

	format, err := output.ParseFormat(a.config.Output)
	if err != nil {
		return err
	}
	a.config.Output = string(format)

	logger := NewLogger(a.config)
	a.logger = &logger
	cmd.SetContext(logging.WithLogger(cmd.Context(), a.logger))

	return nil
}

// ExitOnError prints err and exits with status 1.
func ExitOnError(err error) {
	if err != nil {
		_, _ = os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
