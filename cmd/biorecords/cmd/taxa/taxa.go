// Package taxa provides the taxonomic tree commands.
package taxa

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/cmd/application"
	"github.com/biorecords/biorecords/internal/cmd/alerts"
	"github.com/biorecords/biorecords/internal/cmd/globals"
	"github.com/biorecords/biorecords/internal/cmd/output"
	"github.com/biorecords/biorecords/internal/cmd/table"
	"github.com/biorecords/biorecords/internal/store"
	"github.com/biorecords/biorecords/pkg/errors"
	"github.com/biorecords/biorecords/pkg/logging"
	"github.com/biorecords/biorecords/pkg/taxonomy"
)

// NewCommand creates the taxa command.
func NewCommand(app application.Application) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "taxa",
		Aliases: []string{"taxon"},
		GroupID: "records",
		Short:   "Browse the taxonomic tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newListCommand(app))
	cmd.AddCommand(newShowCommand(app))
	cmd.AddCommand(newTreeCommand(app))
	cmd.AddCommand(newRebuildCommand(app))
	return cmd
}

func newListCommand(app application.Application) *cobra.Command {
	var (
		rank    string
		current bool
		parent  int64
		group   string
		list    *globals.ListFlags
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List taxa",
		Args:  cobra.NoArgs,
		Example: `  biorecords taxa list --rank species --current
  biorecords taxa list --parent 123 --search banksia`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := store.TaxonFilter{ListOptions: list.Options(), ParaphyleticGroups: group}
			if rank != "" {
				r, err := taxonomy.ParseRank(rank)
				if err != nil {
					return err
				}
				f.Rank = &r
			}
			if cmd.Flags().Changed("current") {
				f.Current = &current
			}
			if cmd.Flags().Changed("parent") {
				f.Parent = &parent
			}

			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}
			taxa, total, err := st.Taxa.List(ctx, f)
			if err != nil {
				return err
			}
			app.Logger().Debug().Int("total", total).Int("returned", len(taxa)).Msg("Listed taxa")
			return output.Records(cmd.OutOrStdout(), app.OutputFormat(), table.TaxaToTableData(taxa), taxa)
		},
	}
	list = globals.AddListFlags(cmd)
	cmd.Flags().StringVar(&rank, "rank", "", "Only taxa of this rank (name or number)")
	cmd.Flags().BoolVar(&current, "current", true, "Only current (true) or only superseded (false) taxa")
	cmd.Flags().Int64Var(&parent, "parent", 0, "Only direct children of this name id")
	cmd.Flags().StringVar(&group, "group", "", "Only taxa in this paraphyletic group")
	return cmd
}

func newShowCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name_id>",
		Short: "Show one taxon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nameID, err := parseNameID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}
			t, err := st.Taxa.Get(ctx, nameID)
			if err != nil {
				return err
			}
			return output.Records(cmd.OutOrStdout(), app.OutputFormat(), table.TaxonToTableData(t), t)
		},
	}
}

func newTreeCommand(app application.Application) *cobra.Command {
	var maxDepth int
	cmd := &cobra.Command{
		Use:   "tree [name_id]",
		Short: "Print the tree below a taxon, or the whole tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}

			var roots []*taxonomy.Taxon
			if len(args) == 1 {
				nameID, err := parseNameID(args[0])
				if err != nil {
					return err
				}
				root, err := st.Taxa.Get(ctx, nameID)
				if err != nil {
					return err
				}
				roots = []*taxonomy.Taxon{root}
			} else if roots, err = st.Taxa.Roots(ctx); err != nil {
				return err
			}

			var (
				ordered []*taxonomy.Taxon
				depth   = map[int64]int{}
			)
			for _, root := range roots {
				below, err := st.Taxa.Descendants(ctx, root.NameID)
				if err != nil {
					return err
				}
				o, d := Order(root, below, maxDepth)
				ordered = append(ordered, o...)
				for id, n := range d {
					depth[id] = n
				}
			}

			if output.DetectFormat(app.OutputFormat()) == output.FormatTable {
				_, err = fmt.Fprint(cmd.OutOrStdout(), table.Tree(ordered, depth))
				return err
			}
			return output.Write(cmd.OutOrStdout(), app.OutputFormat(), ordered)
		},
	}
	cmd.Flags().IntVar(&maxDepth, "depth", 0, "Maximum depth below the root (0 for unlimited)")
	return cmd
}

func newRebuildCommand(app application.Application) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-names [name_id]",
		Short: "Recompute derived names below a taxon, or everywhere",
		Long: `Rebuild recomputes the canonical, taxonomic and vernacular names of the
taxa below the given taxon, or of every taxon when none is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := app.Store(ctx)
			if err != nil {
				return err
			}

			var n int
			if len(args) == 1 {
				nameID, err := parseNameID(args[0])
				if err != nil {
					return err
				}
				ctx = logging.WithTaxon(ctx, nameID)
				n, err = st.Taxa.RebuildNames(ctx, nameID)
				if err != nil {
					return err
				}
			} else if n, err = st.Taxa.RebuildAll(ctx); err != nil {
				return err
			}
			logging.FromContext(ctx).Info().Int("changed", n).Msg("Taxon names rebuilt")

			flags := globals.Parse(cmd)
			return alerts.NewWriter(cmd.OutOrStdout(), flags.NoColor, flags.Quiet).
				Write(alerts.NewSuccess(fmt.Sprintf("Rebuilt names of %d taxa", n)))
		},
	}
}

// Order arranges root and its descendants depth first, children by name,
// and returns each taxon's depth below root. Taxa deeper than maxDepth are
// left out unless maxDepth is zero.
func Order(root *taxonomy.Taxon, descendants []*taxonomy.Taxon, maxDepth int) ([]*taxonomy.Taxon, map[int64]int) {
	children := map[int64][]*taxonomy.Taxon{}
	for _, t := range descendants {
		if t.ParentID != nil {
			children[*t.ParentID] = append(children[*t.ParentID], t)
		}
	}
	for _, c := range children {
		slices.SortFunc(c, func(a, b *taxonomy.Taxon) int { return strings.Compare(a.Name, b.Name) })
	}

	var (
		ordered []*taxonomy.Taxon
		depth   = map[int64]int{}
		visit   func(t *taxonomy.Taxon, d int)
	)
	visit = func(t *taxonomy.Taxon, d int) {
		if maxDepth > 0 && d > maxDepth {
			return
		}
		ordered = append(ordered, t)
		depth[t.NameID] = d
		for _, c := range children[t.NameID] {
			visit(c, d+1)
		}
	}
	visit(root, 0)
	return ordered, depth
}

func parseNameID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.NewValidationError("name_id", s, "must be an integer")
	}
	return id, nil
}
