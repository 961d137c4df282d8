// Package report renders run reports, run history and progress for the
// terminal.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/roach88/shopcheck/internal/harness"
)

// Status marks, one per verdict class.
const (
	markPassed  = "✓"
	markFailed  = "✗"
	markErrored = "!"
)

// TextOptions tunes WriteText.
type TextOptions struct {
	// Verbose adds expected/actual lines under failed assertions and the
	// step count under every case.
	Verbose bool
}

// WriteText prints every case grouped by suite, then a summary line.
func WriteText(w io.Writer, r *harness.Report, opts TextOptions) error {
	for i, s := range r.Suites {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, color.New(color.Bold).Sprint(s.Name))
		for _, c := range s.Cases {
			writeCase(w, c, opts)
		}
	}

	t := r.Totals
	if len(r.Suites) > 0 {
		fmt.Fprintln(w)
	}
	_, err := fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d errored, %d total\n",
		t.Passed, t.Failed, t.Errored, t.Total)
	if err != nil {
		return err
	}
	if t.Total > 0 && t.ExitCode == 0 {
		_, err = fmt.Fprintln(w, color.GreenString("%s All cases passed", markPassed))
	}
	return err
}

func writeCase(w io.Writer, c harness.CaseResult, opts TextOptions) {
	v := c.Verdict
	elapsed := c.Duration.Round(time.Millisecond)

	switch v.Status {
	case harness.StatusPassed:
		fmt.Fprintf(w, "  %s %s (%s)\n", color.GreenString(markPassed), c.Case, elapsed)
	case harness.StatusFailed:
		fmt.Fprintf(w, "  %s %s (%s)\n", color.RedString(markFailed), c.Case, elapsed)
	default:
		fmt.Fprintf(w, "  %s %s (%s)\n", color.YellowString(markErrored), c.Case, elapsed)
	}

	if v.Reason != "" {
		fmt.Fprintf(w, "      %s\n", v.Reason)
	}
	if !opts.Verbose {
		return
	}
	if v.Expected != "" || v.Actual != "" {
		fmt.Fprintf(w, "      %s %s\n", color.YellowString("expected:"), v.Expected)
		fmt.Fprintf(w, "      %s %s\n", color.YellowString("actual:  "), v.Actual)
	}
	fmt.Fprintf(w, "      steps run: %d\n", c.StepsRun)
}
