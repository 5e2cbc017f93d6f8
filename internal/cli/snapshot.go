package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// SnapshotResult is the output of snapshot.
type SnapshotResult struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// NewSnapshotCommand creates the snapshot command.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <dest>",
		Short: "Write a consistent copy of the database",
		Long: `Write a consistent, compacted copy of the database to dest using
VACUUM INTO. dest must not exist.

Examples:
  stow snapshot ./backup.db --db ./pets.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := args[0]
			if _, err := os.Stat(dest); err == nil {
				return NewExitError(ExitCommandError, "destination already exists: "+dest)
			}

			s, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer s.store.Close()

			if err := s.store.Snapshot(cmd.Context(), dest); err != nil {
				return WrapExitError(ExitFailure, "snapshot", err)
			}
			s.logger.Info("snapshot written", "dest", dest)
			result := SnapshotResult{Source: s.store.Path(), Dest: dest}
			return s.out.Render(result, func(w io.Writer) {
				fmt.Fprintf(w, "Snapshot of %s written to %s\n", result.Source, result.Dest)
			})
		},
	}
}
