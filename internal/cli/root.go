package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/typedpg/internal/session"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	ConfigPath  string
	DatabaseURL string
	Driver      string

	// LookupEnv reads environment overrides. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Provider replaces the database/sql provider (for testing).
	Provider session.Provider

	// IDs overrides the session ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs session.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the typedpg CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "typedpg",
		Short: "typedpg - typed Postgres queries",
		Long: `Run statements against Postgres through a checked-out session and
verify the result against a cardinality contract.

Configuration is read from --config (YAML), then DATABASE_URL and
PG_POOL_* environment variables, then flags.`,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "connection string (overrides config and DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database/sql driver name (default postgres)")

	cmd.AddCommand(NewPingCommand(opts))
	cmd.AddCommand(NewIntervalCommand(opts))
	cmd.AddCommand(NewTypesCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

// formatter builds the OutputFormatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
