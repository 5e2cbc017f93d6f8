package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/stow/internal/schema"
)

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List entity tables",
		Long: `List the tables of persisted types, one per line.

Examples:
  stow tables --db ./pets.db
  stow tables --db ./pets.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.store.Close()

			tables, err := schema.Tables(cmd.Context(), s.store)
			if err != nil {
				return WrapExitError(ExitFailure, "list tables", err)
			}
			return s.out.Render(tables, func(w io.Writer) {
				for _, t := range tables {
					fmt.Fprintln(w, t)
				}
			})
		},
	}
}
