package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/roach88/shopcheck/internal/harness"
	"github.com/roach88/shopcheck/internal/store"
)

// WriteRuns prints stored runs as a table, newest first.
func WriteRuns(w io.Writer, runs []store.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tPASSED\tFAILED\tERRORED\tSELECTOR")
	for _, r := range runs {
		selector := r.Selector
		if selector == "" {
			selector = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID,
			r.StartedAt.UTC().Format(time.RFC3339),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			r.Totals.Passed,
			r.Totals.Failed,
			r.Totals.Errored,
			selector,
		)
	}
	return tw.Flush()
}

// WriteChanges prints the status changes between two runs.
func WriteChanges(w io.Writer, before, after string, changes []store.Change) error {
	if len(changes) == 0 {
		_, err := fmt.Fprintf(w, "No status changes between %s and %s.\n", before, after)
		return err
	}

	for _, c := range changes {
		fmt.Fprintf(w, "%s/%s: %s -> %s\n", c.Suite, c.Case, statusText(c.Before), statusText(c.After))
		if c.Reason != "" && c.After != harness.StatusPassed {
			fmt.Fprintf(w, "      %s\n", c.Reason)
		}
	}
	_, err := fmt.Fprintf(w, "\n%d case(s) changed\n", len(changes))
	return err
}

func statusText(s harness.Status) string {
	switch s {
	case harness.StatusPassed:
		return color.GreenString(string(s))
	case harness.StatusFailed:
		return color.RedString(string(s))
	case harness.StatusErrored:
		return color.YellowString(string(s))
	default:
		return "absent"
	}
}
