package harness

import (
	"fmt"
	"time"

	"github.com/roach88/shopcheck/internal/target"
)

// StepKind distinguishes actions (mutate the target) from assertions
// (read the target and compare).
type StepKind int

const (
	KindAction StepKind = iota
	KindAssertion
)

// Op is an action verb.
type Op string

const (
	OpNavigate Op = "navigate"
	OpFill     Op = "fill"
	OpClick    Op = "click"
	OpSelect   Op = "select"
)

// Read selects which piece of target state an assertion captures.
type Read string

const (
	ReadURL        Read = "url"
	ReadText       Read = "text"
	ReadTexts      Read = "texts"
	ReadVisibility Read = "visibility"
	ReadCount      Read = "count"
)

// Mode is the comparison an Expectation applies to a captured value.
type Mode string

const (
	ModeEquals        Mode = "equals"
	ModeContains      Mode = "contains"
	ModeVisible       Mode = "visible"
	ModeHidden        Mode = "hidden"
	ModeCount         Mode = "count"
	ModeNonDecreasing Mode = "non_decreasing"
	ModeNonIncreasing Mode = "non_increasing"
)

// Expectation is an expected value plus the comparison to apply.
// It is pure data; Compare evaluates it.
type Expectation struct {
	Mode  Mode   `json:"mode"`
	Value string `json:"value,omitempty"` // equals, contains
	Count int    `json:"count,omitempty"` // count
}

// Step is one action or assertion of a Case.
type Step struct {
	Kind    StepKind
	Op      Op             // actions only
	Read    Read           // assertions only
	Locator target.Locator // empty for navigate and url reads
	Value   string         // navigate URL, fill/select value
	Expect  Expectation    // assertions only
}

// Navigate builds an action loading url. Relative URLs resolve against the
// executor's base URL.
func Navigate(url string) Step {
	return Step{Kind: KindAction, Op: OpNavigate, Value: url}
}

// Fill builds an action typing value into loc.
func Fill(loc target.Locator, value string) Step {
	return Step{Kind: KindAction, Op: OpFill, Locator: loc, Value: value}
}

// Click builds an action clicking loc.
func Click(loc target.Locator) Step {
	return Step{Kind: KindAction, Op: OpClick, Locator: loc}
}

// Select builds an action choosing value in the select element loc.
func Select(loc target.Locator, value string) Step {
	return Step{Kind: KindAction, Op: OpSelect, Locator: loc, Value: value}
}

// ExpectURL asserts the current URL equals url.
func ExpectURL(url string) Step {
	return Step{Kind: KindAssertion, Read: ReadURL, Expect: Expectation{Mode: ModeEquals, Value: url}}
}

// ExpectText asserts the text of loc equals text.
func ExpectText(loc target.Locator, text string) Step {
	return Step{Kind: KindAssertion, Read: ReadText, Locator: loc, Expect: Expectation{Mode: ModeEquals, Value: text}}
}

// ExpectContains asserts the text of loc contains text.
func ExpectContains(loc target.Locator, text string) Step {
	return Step{Kind: KindAssertion, Read: ReadText, Locator: loc, Expect: Expectation{Mode: ModeContains, Value: text}}
}

// ExpectVisible asserts loc is present and visible.
func ExpectVisible(loc target.Locator) Step {
	return Step{Kind: KindAssertion, Read: ReadVisibility, Locator: loc, Expect: Expectation{Mode: ModeVisible}}
}

// ExpectHidden asserts loc is absent or hidden.
func ExpectHidden(loc target.Locator) Step {
	return Step{Kind: KindAssertion, Read: ReadVisibility, Locator: loc, Expect: Expectation{Mode: ModeHidden}}
}

// ExpectCount asserts exactly n elements match loc.
func ExpectCount(loc target.Locator, n int) Step {
	return Step{Kind: KindAssertion, Read: ReadCount, Locator: loc, Expect: Expectation{Mode: ModeCount, Count: n}}
}

// ExpectNonDecreasing asserts the numbers in the texts of loc never decrease.
func ExpectNonDecreasing(loc target.Locator) Step {
	return Step{Kind: KindAssertion, Read: ReadTexts, Locator: loc, Expect: Expectation{Mode: ModeNonDecreasing}}
}

// ExpectNonIncreasing asserts the numbers in the texts of loc never increase.
func ExpectNonIncreasing(loc target.Locator) Step {
	return Step{Kind: KindAssertion, Read: ReadTexts, Locator: loc, Expect: Expectation{Mode: ModeNonIncreasing}}
}

// String renders the step for logs and failure messages.
func (s Step) String() string {
	if s.Kind == KindAction {
		switch s.Op {
		case OpNavigate:
			return fmt.Sprintf("navigate %s", s.Value)
		case OpFill, OpSelect:
			return fmt.Sprintf("%s %s = %q", s.Op, s.Locator, s.Value)
		default:
			return fmt.Sprintf("%s %s", s.Op, s.Locator)
		}
	}

	switch s.Expect.Mode {
	case ModeEquals, ModeContains:
		if s.Read == ReadURL {
			return fmt.Sprintf("expect url %s %q", s.Expect.Mode, s.Expect.Value)
		}
		return fmt.Sprintf("expect text %s %s %q", s.Locator, s.Expect.Mode, s.Expect.Value)
	case ModeCount:
		return fmt.Sprintf("expect count %s is %d", s.Locator, s.Expect.Count)
	case ModeNonDecreasing, ModeNonIncreasing:
		return fmt.Sprintf("expect order %s %s", s.Locator, s.Expect.Mode)
	default:
		return fmt.Sprintf("expect %s %s", s.Expect.Mode, s.Locator)
	}
}

// Case is a named, ordered list of steps. Cases are immutable once
// registered.
type Case struct {
	Name  string
	Tags  []string
	Steps []Step
}

// Suite groups cases that share a precondition.
type Suite struct {
	// Name is unique within a Registry.
	Name string

	Description string
	Tags        []string

	// Precondition, if set, runs to completion before every case against
	// that case's own target.
	Precondition Precondition

	Cases []*Case

	// Source is the file the suite was loaded from, if any.
	Source string
}

// Status is the outcome class of a Verdict.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
)

// Verdict is the write-once outcome of one case.
type Verdict struct {
	Status Status `json:"status"`

	// StepIndex is the failing step, or -1 when no step is to blame
	// (passed, precondition errors, aborts).
	StepIndex int `json:"step_index"`

	Reason   string `json:"reason,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// Passed returns a passing verdict.
func Passed() Verdict {
	return Verdict{Status: StatusPassed, StepIndex: -1}
}

// Failed returns a failing verdict blamed on step index.
func Failed(reason string, index int) Verdict {
	return Verdict{Status: StatusFailed, StepIndex: index, Reason: reason}
}

// Errored returns a verdict for a case that could not run to a decision.
func Errored(detail string) Verdict {
	return Verdict{Status: StatusErrored, StepIndex: -1, Reason: detail}
}

// CaseResult is a verdict with its bookkeeping.
type CaseResult struct {
	Suite    string        `json:"suite"`
	Case     string        `json:"case"`
	Verdict  Verdict       `json:"verdict"`
	StepsRun int           `json:"steps_run"`
	Duration time.Duration `json:"duration_ns"`

	// Err is the error behind a non-passing verdict.
	Err error `json:"-"`
}

// SuiteSummary lists a suite's case results in declared order.
type SuiteSummary struct {
	Name    string       `json:"name"`
	Cases   []CaseResult `json:"cases"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Errored int          `json:"errored"`
}

// Totals are the aggregate counts of a run.
type Totals struct {
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Errored  int `json:"errored"`
	Total    int `json:"total"`
	ExitCode int `json:"exit_code"`
}

// Report is the outcome of one Run.
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Suites     []SuiteSummary `json:"suites"`
	Totals     Totals         `json:"totals"`
}

// Results flattens the report into execution order.
func (r *Report) Results() []CaseResult {
	var out []CaseResult
	for _, s := range r.Suites {
		out = append(out, s.Cases...)
	}
	return out
}
