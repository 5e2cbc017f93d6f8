package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/stow/internal/sqlgen"
	"github.com/roach88/stow/query"
)

// RowsOptions holds flags for the rows command.
type RowsOptions struct {
	*RootOptions
	Limit int
	Sort  string
	Desc  bool
}

// RowsResult is the output of rows.
type RowsResult struct {
	Table   string           `json:"table"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// NewRowsCommand creates the rows command.
func NewRowsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RowsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rows <table>",
		Short: "Print the stored rows of a table",
		Long: `Print stored rows as the database holds them: references show the
target identifier and collections show their JSON text.

Examples:
  stow rows Dog --db ./pets.db --limit 20
  stow rows Dog --db ./pets.db --sort age --desc`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRows(opts, cmd, args[0])
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum rows to print (0 for all)")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "column to sort by")
	cmd.Flags().BoolVar(&opts.Desc, "desc", false, "sort descending")

	return cmd
}

func runRows(opts *RowsOptions, cmd *cobra.Command, table string) error {
	s, err := opts.open(cmd)
	if err != nil {
		return err
	}
	defer s.store.Close()

	desc, err := describeTable(cmd, s, table)
	if err != nil {
		return err
	}

	q := query.New().Limit(opts.Limit)
	if opts.Sort != "" {
		if !hasColumn(desc, opts.Sort) {
			return NewExitError(ExitCommandError, fmt.Sprintf("table %s has no column %q", table, opts.Sort))
		}
		dir := query.Ascending
		if opts.Desc {
			dir = query.Descending
		}
		q.SortBy(opts.Sort, dir)
	}

	stmt, stmtArgs, err := sqlgen.Select(table, q)
	if err != nil {
		return WrapExitError(ExitCommandError, "compile query", err)
	}
	s.logger.Debug("selecting rows", "statement", stmt)

	res, err := s.store.Query(cmd.Context(), stmt, stmtArgs...)
	if err != nil {
		return WrapExitError(ExitFailure, "select rows", err)
	}

	result := RowsResult{Table: table, Columns: res.Columns, Rows: make([]map[string]any, len(res.Rows))}
	for i, row := range res.Rows {
		m := make(map[string]any, len(row))
		for j, v := range row {
			m[res.Columns[j]] = printable(v)
		}
		result.Rows[i] = m
	}

	return s.out.Render(result, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(res.Columns, "\t"))
		for _, row := range res.Rows {
			cells := make([]string, len(row))
			for j, v := range row {
				if v == nil {
					cells[j] = "NULL"
				} else {
					cells[j] = fmt.Sprint(printable(v))
				}
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		tw.Flush()
	})
}

func hasColumn(desc TableDescription, name string) bool {
	for _, c := range desc.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// printable renders blobs as hex literals and leaves other values alone.
func printable(v any) any {
	if b, ok := v.([]byte); ok {
		return fmt.Sprintf("x'%x'", b)
	}
	return v
}
