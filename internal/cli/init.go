package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hostcat/internal/store"
)

// InitResult is the output of the init command.
type InitResult struct {
	Database string      `json:"database"`
	Stats    store.Stats `json:"stats"`
}

func (r InitResult) String() string {
	return fmt.Sprintf("Initialized %s (%d categories, %d domains)",
		r.Database, r.Stats.Categories, r.Stats.Domains)
}

// ResetResult is the output of the reset command.
type ResetResult struct {
	Database string      `json:"database"`
	Removed  store.Stats `json:"removed"`
}

func (r ResetResult) String() string {
	return fmt.Sprintf("Reset %s: removed %d categories, %d domains, %d load records",
		r.Database, r.Removed.Categories, r.Removed.Domains, r.Removed.Loads)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and apply the schema",
		Long: `Create the database file if it does not exist and apply the schema.

Safe to run repeatedly; existing data is kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.store.Stats(cmd.Context())
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeDatabase, "failed to read database", err)
			}
			return a.out.Success(InitResult{Database: a.cfg.AclDatabaseFile, Stats: stats})
		},
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every category, domain and load record",
		Long: `Delete every category, domain and load record from the database.

This cannot be undone. The --yes flag is required.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return out.Fail(ExitCommandError, ErrCodeConfirm,
					"reset deletes all data; rerun with --yes to confirm", nil)
			}

			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.store.Stats(cmd.Context())
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeDatabase, "failed to read database", err)
			}
			if err := a.store.Cleanup(cmd.Context()); err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeDatabase, "failed to reset database", err)
			}
			return a.out.Success(ResetResult{Database: a.cfg.AclDatabaseFile, Removed: stats})
		},
	}

	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "confirm deleting all data")
	return cmd
}
