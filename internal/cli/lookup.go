package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/hostcat/internal/hostname"
	"github.com/roach88/hostcat/internal/registry"
	"github.com/roach88/hostcat/internal/resolver"
)

// AddResult is the output of the add command.
type AddResult struct {
	Domain   string `json:"domain"`
	Category string `json:"category"`
}

func (r AddResult) String() string {
	return fmt.Sprintf("Added %s -> %s", r.Domain, r.Category)
}

// LookupResult is the output of a successful lookup.
type LookupResult struct {
	Host     string `json:"host"`
	Domain   string `json:"domain"`
	Category string `json:"category"`
}

func (r LookupResult) String() string {
	return fmt.Sprintf("%s: %s (matched %s)", r.Host, r.Category, r.Domain)
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <hostname> <category>",
		Short: "Register a domain under a category",
		Long: `Register a single domain under a category, creating the category if needed.

The hostname is trimmed, lowercased and stripped of any port or trailing dot;
internationalized names are stored in their ASCII (punycode) form. A domain
keeps the first category it was registered under.

Example:
  hostcat add doubleclick.net ads
  hostcat add news.example.org news/tech`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			host, err := hostname.Normalize(args[0])
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid hostname", err)
			}
			category := args[1]

			err = a.registry.AddHostName(cmd.Context(), host, category)
			var invalid *hostname.InvalidHostnameError
			switch {
			case err == nil:
				return a.out.Success(AddResult{Domain: host, Category: category})
			case errors.As(err, &invalid), errors.Is(err, registry.ErrEmptyCategory):
				return a.out.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid input", err)
			case registry.IsConflict(err):
				return a.out.Fail(ExitFailure, ErrCodeConflict, "domain not added", err)
			default:
				return a.out.Fail(ExitCommandError, ErrCodeDatabase, "failed to add domain", err)
			}
		},
	}
}

// NewLookupCommand creates the lookup command.
func NewLookupCommand(rootOpts *RootOptions) *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "lookup <hostname>",
		Short: "Find the category of a hostname",
		Long: `Find the most specific registered domain that is the hostname itself or one
of its parents, and print its category. Exits with status 1 when nothing matches.

Example:
  hostcat lookup ads.tracker.example.com
  hostcat lookup www.example.org --category news`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			host, err := hostname.Normalize(args[0])
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeInvalidInput, "invalid hostname", err)
			}

			m, err := a.resolver.Lookup(cmd.Context(), host, category)
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeDatabase, "lookup failed", err)
			}
			if m == nil {
				return a.out.Fail(ExitFailure, ErrCodeNotFound, fmt.Sprintf("no category for %s", host), nil)
			}
			return a.out.Success(LookupResult{Host: host, Domain: m.Domain, Category: m.Category})
		},
	}

	cmd.Flags().StringVar(&category, "category", resolver.AnyCategory, `restrict matches to one category ("any" for all)`)
	return cmd
}
