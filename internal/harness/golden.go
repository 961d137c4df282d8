package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders the verdicts of a report as stable text: one line per
// case in report order, then the totals. Durations, timestamps and run IDs
// are left out so snapshots compare across runs.
func Snapshot(r *Report) []byte {
	var b strings.Builder
	for _, s := range r.Suites {
		for _, c := range s.Cases {
			fmt.Fprintf(&b, "%s/%s: %s", c.Suite, c.Case, c.Verdict.Status)
			if c.Verdict.StepIndex >= 0 {
				fmt.Fprintf(&b, " at step %d", c.Verdict.StepIndex)
			}
			if c.Verdict.Reason != "" {
				fmt.Fprintf(&b, ": %s", c.Verdict.Reason)
			}
			b.WriteByte('\n')
		}
	}
	t := r.Totals
	fmt.Fprintf(&b, "total=%d passed=%d failed=%d errored=%d exit=%d\n",
		t.Total, t.Passed, t.Failed, t.Errored, t.ExitCode)
	return []byte(b.String())
}

// AssertGolden compares the snapshot of r against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./... -update
func AssertGolden(t *testing.T, name string, r *Report) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, Snapshot(r))
}
