package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/hostcat/internal/loader"
)

// LoadFileResult is the output of the load-file command.
type LoadFileResult loader.Report

func (r LoadFileResult) String() string {
	return fmt.Sprintf("Loaded %s into %s: %d inserted, %d skipped (load %s)",
		r.Source, r.Category, r.Inserted, r.Skipped, r.ID)
}

// LoadDirResult is the output of the load-dir command.
type LoadDirResult struct {
	Root    string          `json:"root"`
	Reports []loader.Report `json:"reports"`
}

func (r LoadDirResult) String() string {
	var b strings.Builder
	inserted, skipped := 0, 0
	for _, rep := range r.Reports {
		fmt.Fprintf(&b, "%s: %d inserted, %d skipped\n", rep.Category, rep.Inserted, rep.Skipped)
		inserted += rep.Inserted
		skipped += rep.Skipped
	}
	fmt.Fprintf(&b, "Imported %d file(s): %d inserted, %d skipped", len(r.Reports), inserted, skipped)
	return b.String()
}

// NewLoadFileCommand creates the load-file command.
func NewLoadFileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load-file <path> <category>",
		Short: "Load a domain list file under one category",
		Long: `Load a plain-text list of hostnames, one per line, under one category.

Blank lines are ignored and a trailing dot is stripped. Domains that are
already registered are skipped, so loading the same file again is harmless.
The file is loaded in a single transaction.

Example:
  hostcat load-file ./lists/ads/domains ads`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.loader.LoadDomainsFile(cmd.Context(), args[0], args[1])
			if err != nil {
				return a.out.Fail(ExitCommandError, ErrCodeLoadFailed, "load failed", err)
			}
			return a.out.Success(LoadFileResult(*report))
		},
	}
}

// NewLoadDirCommand creates the load-dir command.
func NewLoadDirCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load-dir <root>",
		Short: "Import every domains file under a directory tree",
		Long: `Import every file named "domains" under a directory tree. Each file is
loaded under the category given by its parent path relative to the root, so
<root>/news/tech/domains is loaded as "news/tech".

Files are loaded one at a time; a failing file does not stop the others.
Exits with status 1 if any file failed.

Example:
  hostcat load-dir ./blacklists`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, rootOpts)
			if err != nil {
				return err
			}
			defer a.close()

			root := args[0]
			reports, loadErr := a.loader.LoadDomainsDirectory(cmd.Context(), root)
			result := LoadDirResult{Root: root, Reports: reports}
			if loadErr == nil {
				return a.out.Success(result)
			}
			if len(reports) == 0 {
				return a.out.Fail(ExitCommandError, ErrCodeLoadFailed, "import failed", loadErr)
			}

			// Partial import: report what loaded alongside the failures.
			if a.out.JSON() {
				_ = json.NewEncoder(a.out.Writer).Encode(CLIResponse{
					Status: "error",
					Data:   result,
					Error: &CLIError{
						Code:    ErrCodeLoadFailed,
						Message: loadErr.Error(),
					},
				})
			} else {
				fmt.Fprintln(a.out.Writer, result)
				_ = a.out.Error(ErrCodeLoadFailed, loadErr.Error(), nil)
			}
			return WrapExitError(ExitFailure, ErrCodeLoadFailed+": partial import", loadErr)
		},
	}
}
