package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/hostcat/internal/store"
)

// CategoriesResult is the output of the categories command.
type CategoriesResult []store.CategoryCount

func (r CategoriesResult) String() string {
	if len(r) == 0 {
		return "No categories"
	}
	width := 0
	for _, c := range r {
		width = max(width, len(c.Label))
	}
	lines := make([]string, len(r))
	for i, c := range r {
		lines[i] = fmt.Sprintf("%-*s  %d", width, c.Label, c.Domains)
	}
	return strings.Join(lines, "\n")
}

// HistoryResult is the output of the history command.
type HistoryResult []store.LoadRecord

func (r HistoryResult) String() string {
	if len(r) == 0 {
		return "No loads recorded"
	}
	lines := make([]string, len(r))
	for i, rec := range r {
		lines[i] = fmt.Sprintf("%s  %s  %s: %d inserted, %d skipped  %s",
			rec.LoadedAt.UTC().Format(time.RFC3339), rec.ID, rec.Category, rec.Inserted, rec.Skipped, rec.Source)
	}
	return strings.Join(lines, "\n")
}

// NewCategoriesCommand creates the categories command.
func NewCategoriesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "categories",
		Short:         "List categories with their domain counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			cats, err := a.store.Categories(cmd.Context())
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeDatabase, "failed to list categories", err)
			}
			return a.out.Success(CategoriesResult(cats))
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history",
		Short:         "List committed bulk loads, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			loads, err := a.store.Loads(cmd.Context())
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeDatabase, "failed to list loads", err)
			}
			return a.out.Success(HistoryResult(loads))
		},
	}
}
