// Package cli implements the stow command line: read-only inspection of a
// stow database and snapshots of it.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/stow/internal/config"
	"github.com/roach88/stow/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Database   string // overrides the configured path
	Sandbox    bool
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the stow CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stow",
		Short: "Inspect stow object databases",
		Long: `Inspect the tables, columns and indexes stow keeps for persisted types.

The database comes from --db, or from the path in --config, or from
STOW_PATH. With --sandbox commands run against a temporary copy.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the database (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.Sandbox, "sandbox", false, "operate on a temporary copy of the database")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewDescribeCommand(opts))
	cmd.AddCommand(NewRowsCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))

	return cmd
}

// session is an open database plus the output settings of one command run.
type session struct {
	store  *store.Store
	logger *slog.Logger
	out    *OutputFormatter
}

// open resolves the configuration and opens the database. The caller must
// close the returned session's store.
func (o *RootOptions) open(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if o.Database != "" {
		cfg.Path = o.Database
	}
	if o.Sandbox {
		cfg.Mode = string(store.ModeSandbox)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "config", err)
	}

	level := cfg.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	st, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	logger.Debug("database opened", "path", cfg.Path, "mode", cfg.Mode, "working_file", st.Path())

	return &session{
		store:  st,
		logger: logger,
		out:    &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()},
	}, nil
}
