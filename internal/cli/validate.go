package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/roach88/shopcheck/internal/report"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool         `json:"valid"`
	Files []FileResult `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [suite-file-or-dir...]",
		Short: "Check suite files without running them",
		Long: `Check suite files against the suite schema without starting a browser.

Every file is checked, so one run reports all problems: unknown keys,
missing values, malformed steps, duplicate case names within a suite,
and suite names used twice.

Exit codes:
  0 - All files are valid
  1 - One or more files are invalid
  2 - Command error (path not found, no suite files)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loaded, errs := LoadSuites(paths, LoadModeCollectAll)
	if loaded == nil {
		return failLoad(formatter, errs[0])
	}

	result := ValidationResult{Valid: len(errs) == 0, Files: loaded.Files}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeInvalidSuite, Message: fmt.Sprintf("%d invalid suite file(s)", len(errs))}
		}
		if err := report.WriteJSON(formatter.Writer, resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		for _, f := range result.Files {
			if f.Error != "" {
				fmt.Fprintf(w, "%s %s\n", color.RedString("✗"), f.File)
				fmt.Fprintf(w, "  %s\n", f.Error)
				continue
			}
			fmt.Fprintf(w, "%s %s (%s, %d case(s))\n", color.GreenString("✓"), f.File, f.Suite, f.Cases)
		}
		if result.Valid {
			fmt.Fprintf(w, "\n%d suite file(s) valid\n", len(result.Files))
		} else {
			fmt.Fprintf(w, "\n%d of %d suite file(s) invalid\n", len(errs), len(result.Files))
		}
	}

	if !result.Valid {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d invalid suite file(s)", len(errs)), reported: true}
	}
	return nil
}
