// Package listings provides the conservation listing commands.
package listings

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/cmd/application"
	"github.com/biorecords/biorecords/internal/cmd/alerts"
	"github.com/biorecords/biorecords/internal/cmd/globals"
	"github.com/biorecords/biorecords/internal/cmd/output"
	"github.com/biorecords/biorecords/internal/cmd/table"
	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/conservation"
	"github.com/biorecords/biorecords/pkg/errors"
)

// NewCommand creates the listings command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "listings",
		Aliases: []string{"listing"},
		GroupID: "records",
		Short:   "Inspect and move conservation listings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newStatusCommand(app))
	cmd.AddCommand(newTransitionCommand(app))
	return cmd
}

func newListCommand(app application.Application) *cobra.Command {
	var (
		kind      string
		taxon     int64
		community string
		status    string
		scope     int
		list      *globals.ListFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List listings",
		Args:  cobra.NoArgs,
		Example: `  biorecords listings list --kind taxon --status listed
  biorecords listings list --community SCP01`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := store.ListingFilter{ListOptions: list.Options(), Community: community}
			if kind != "" {
				k, err := parseKind(kind)
				if err != nil {
					return err
				}
				f.Kind = k
			}
			if cmd.Flags().Changed("taxon") {
				f.TaxonID = &taxon
			}
			if status != "" {
				s, err := conservation.ParseListingStatus(status)
				if err != nil {
					return err
				}
				f.Status = &s
			}
			if cmd.Flags().Changed("scope") {
				s := conservation.Scope(scope)
				if !s.Valid() {
					return errors.NewValidationError("scope", scope, "unknown scope")
				}
				f.Scope = &s
			}

			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}
			listings, total, err := st.Listings.List(ctx, f)
			if err != nil {
				return err
			}
			app.Logger().Debug().Int("total", total).Int("returned", len(listings)).Msg("Listed listings")
			return output.Records(cmd.OutOrStdout(), app.OutputFormat(), table.ListingsToTableData(listings), listings)
		},
	}
	list = globals.AddListFlags(cmd)
	cmd.Flags().StringVar(&kind, "kind", "", "Only taxon or community listings")
	cmd.Flags().Int64Var(&taxon, "taxon", 0, "Only listings of this taxon name id")
	cmd.Flags().StringVar(&community, "community", "", "Only listings of this community code")
	cmd.Flags().StringVar(&status, "status", "", "Only listings in this status (name or number)")
	cmd.Flags().IntVar(&scope, "scope", 0, "Only listings in this scope (0 WA, 1 Commonwealth, 2 International, 3 Action Plan)")
	return cmd
}

// Status is a subject's conservation status with its listings.
type Status struct {
	Status   conservation.SubjectStatus `json:"status" yaml:"status"`
	Listings []*conservation.Listing    `json:"listings" yaml:"listings"`
}

func newStatusCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "status taxon|community <id>",
		Short: "Show the conservation status of a taxon or community",
		Args:  cobra.ExactArgs(2),
		Example: `  biorecords listings status taxon 12345
  biorecords listings status community SCP01`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}

			var s Status
			switch kind {
			case conservation.SubjectTaxon:
				nameID, err := strconv.ParseInt(args[1], 10, 64)
				if err != nil {
					return errors.NewValidationError("name_id", args[1], "must be an integer")
				}
				s.Status, s.Listings, err = st.Listings.TaxonStatus(ctx, nameID)
				if err != nil {
					return err
				}
			default:
				s.Status, s.Listings, err = st.Listings.CommunityStatus(ctx, args[1])
				if err != nil {
					return err
				}
			}

			w := cmd.OutOrStdout()
			if output.DetectFormat(app.OutputFormat()) != output.FormatTable {
				return output.Write(w, app.OutputFormat(), s)
			}
			if err := output.Write(w, string(output.FormatTable), table.StatusToTableData(s.Status)); err != nil {
				return err
			}
			if len(s.Listings) == 0 {
				return nil
			}
			return output.Write(w, string(output.FormatTable), table.ListingsToTableData(s.Listings))
		},
	}
}

func newTransitionCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "transition taxon|community <listing_id> <status>",
		Short: "Move a listing through the approval workflow",
		Long: `Transition moves a listing to the given status. The status is a code or
its name, for example 20 or "in review with panel". Listing a proposal
closes any listing of the same subject and scope that is currently
listed.`,
		Args: cobra.ExactArgs(3),
		Example: `  biorecords listings transition taxon 42 listed
  biorecords listings transition community 7 "in review with experts"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(args[0])
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return errors.NewValidationError("id", args[1], "must be an integer")
			}
			next, err := conservation.ParseListingStatus(args[2])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}
			l, err := st.Listings.Transition(ctx, kind, id, next)
			if err != nil {
				return err
			}
			app.Logger().Info().Str("kind", string(kind)).Int64("id", id).Str("status", next.String()).Msg("Listing transitioned")

			if output.DetectFormat(app.OutputFormat()) != output.FormatTable {
				return output.Write(cmd.OutOrStdout(), app.OutputFormat(), l)
			}
			flags := globals.Parse(cmd)
			return alerts.NewWriter(cmd.OutOrStdout(), flags.NoColor, flags.Quiet).
				Write(alerts.NewSuccess("Listing " + args[1] + " is now " + l.Status.String()))
		},
	}
}

func parseKind(s string) (conservation.SubjectKind, error) {
	switch k := conservation.SubjectKind(strings.ToLower(strings.TrimSpace(s))); k {
	case conservation.SubjectTaxon, conservation.SubjectCommunity:
		return k, nil
	}
	return "", errors.NewValidationError("kind", s, "must be taxon or community")
}
