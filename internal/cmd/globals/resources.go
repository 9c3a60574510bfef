package globals

import (
	"github.com/spf13/cobra"

	"github.com/biorecords/biorecords/internal/store"
)

// ListFlags holds paging and search flags for list commands.
type ListFlags struct {
	Limit  int
	Offset int
	Search string
}

// AddListFlags adds paging and search flags to a command.
func AddListFlags(cmd *cobra.Command) *ListFlags {
	flags := &ListFlags{}

	cmd.Flags().IntVarP(&flags.Limit, "limit", "l", store.DefaultLimit,
		"Limit number of results")
	cmd.Flags().IntVar(&flags.Offset, "offset", 0,
		"Skip this many results")
	cmd.Flags().StringVarP(&flags.Search, "search", "s", "",
		"Search term to filter results")

	return flags
}

// Options converts the flags into store list options.
func (f *ListFlags) Options() store.ListOptions {
	return store.ListOptions{Limit: f.Limit, Offset: f.Offset, Query: f.Search}
}
