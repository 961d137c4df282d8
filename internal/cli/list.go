package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/shopcheck/internal/harness"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	SelectOptions
}

// SuiteListing describes one suite for list output.
type SuiteListing struct {
	Suite  string        `json:"suite"`
	Source string        `json:"source,omitempty"`
	Tags   []string      `json:"tags,omitempty"`
	Setup  int           `json:"setup_steps"`
	Cases  []CaseListing `json:"cases"`
}

// CaseListing describes one case for list output.
type CaseListing struct {
	Name  string   `json:"name"`
	Tags  []string `json:"tags,omitempty"`
	Steps []string `json:"steps"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list [suite-file-or-dir...]",
		Short: "List suites and cases without running them",
		Long: `List the suites and cases a run would execute.

Takes the same paths and selection flags as run. Use --verbose to
print every step.

Examples:
  shopcheck list
  shopcheck list --tag smoke
  shopcheck list ./suites --filter "*/should add*" --verbose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, args, cmd)
		},
	}

	addSelectFlags(cmd, &opts.SelectOptions)

	return cmd
}

func runList(opts *ListOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	sel := opts.selector()
	if err := sel.Validate(); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid selection", err)
	}

	loaded, errs := LoadSuites(paths, LoadModeFailFast)
	if len(errs) > 0 {
		return failLoad(formatter, errs[0])
	}

	listings := []SuiteListing{}
	for _, s := range loaded.Registry.Select(sel) {
		listings = append(listings, listSuite(s))
	}

	if formatter.JSON() {
		return formatter.Success(listings)
	}

	w := formatter.Writer
	if len(listings) == 0 {
		fmt.Fprintln(w, "No cases matched the selection.")
		return nil
	}
	total := 0
	for _, l := range listings {
		fmt.Fprintf(w, "%s%s\n", l.Suite, tagSuffix(l.Tags))
		for _, c := range l.Cases {
			total++
			fmt.Fprintf(w, "  %s%s\n", c.Name, tagSuffix(c.Tags))
			if opts.Verbose {
				for i, step := range c.Steps {
					fmt.Fprintf(w, "      %d. %s\n", i, step)
				}
			}
		}
	}
	fmt.Fprintf(w, "\n%d case(s) in %d suite(s)\n", total, len(listings))
	return nil
}

func listSuite(s *harness.Suite) SuiteListing {
	l := SuiteListing{Suite: s.Name, Source: s.Source, Tags: s.Tags}
	if setup, ok := s.Precondition.(*harness.Setup); ok {
		l.Setup = len(setup.Steps)
	}
	for _, c := range s.Cases {
		cl := CaseListing{Name: c.Name, Tags: c.Tags, Steps: make([]string, len(c.Steps))}
		for i, step := range c.Steps {
			cl.Steps[i] = step.String()
		}
		l.Cases = append(l.Cases, cl)
	}
	return l
}

func tagSuffix(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " [" + strings.Join(tags, ", ") + "]"
}
