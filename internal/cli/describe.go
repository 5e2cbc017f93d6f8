package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stow/internal/schema"
)

// TableDescription is the output of describe.
type TableDescription struct {
	Table   string              `json:"table"`
	Columns []schema.ColumnInfo `json:"columns"`
	Indexes []schema.IndexInfo  `json:"indexes"`
}

// NewDescribeCommand creates the describe command.
func NewDescribeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns and indexes of a table",
		Long: `Show the columns of a table with their SQLite types and the value
kinds stow recorded for them, followed by the table's indexes.

Columns a type no longer declares are still listed: stow never drops them.

Examples:
  stow describe Dog --db ./pets.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.store.Close()

			desc, err := describeTable(cmd, s, args[0])
			if err != nil {
				return err
			}
			return s.out.Render(desc, func(w io.Writer) { writeDescription(w, desc) })
		},
	}
}

func describeTable(cmd *cobra.Command, s *session, table string) (TableDescription, error) {
	ctx := cmd.Context()
	cols, err := schema.Columns(ctx, s.store, table)
	if err != nil {
		return TableDescription{}, WrapExitError(ExitFailure, "read columns", err)
	}
	if len(cols) == 0 {
		return TableDescription{}, NewExitError(ExitCommandError, fmt.Sprintf("no table named %q", table))
	}
	idx, err := schema.Indexes(ctx, s.store, table)
	if err != nil {
		return TableDescription{}, WrapExitError(ExitFailure, "read indexes", err)
	}
	return TableDescription{Table: table, Columns: cols, Indexes: idx}, nil
}

func writeDescription(w io.Writer, desc TableDescription) {
	fmt.Fprintf(w, "Table: %s\n\n", desc.Table)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tKIND\tREF\tKEY")
	for _, c := range desc.Columns {
		key := ""
		if c.PrimaryKey {
			key = "pk"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.Type, dash(c.Kind), dash(c.Ref), key)
	}
	tw.Flush()

	if len(desc.Indexes) == 0 {
		return
	}
	fmt.Fprintln(w, "\nIndexes:")
	for _, idx := range desc.Indexes {
		partial := ""
		if idx.Partial {
			partial = " (partial)"
		}
		fmt.Fprintf(w, "  %s (%s)%s\n", idx.Name, strings.Join(idx.Columns, ", "), partial)
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
