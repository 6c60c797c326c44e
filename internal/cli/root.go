package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/hostcat/internal/loader"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // optional .yaml/.yml/.cue config file
	Database string // overrides aclDatabaseFile from the config

	// LoaderOptions are passed to the bulk loader (for testing).
	LoaderOptions []loader.Option
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the hostcat CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hostcat",
		Short: "hostcat - hostname category lookups",
		Long: `Classify hostnames by the category of their most specific registered domain.

Domain lists are loaded from flat files or from a directory tree where each
file named "domains" belongs to the category given by its parent path.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "config file (.yaml, .yml or .cue)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", `database file, or ":memory:" (overrides config)`)

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewLookupCommand(opts))
	cmd.AddCommand(NewLoadFileCommand(opts))
	cmd.AddCommand(NewLoadDirCommand(opts))
	cmd.AddCommand(NewCategoriesCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}
