package harness

import (
	"fmt"
	"sync"
)

type caseKey struct {
	suite string
	name  string
}

// Aggregator collects case results into per-suite summaries.
//
// Cases announced with Plan keep their planned position no matter when
// their result arrives, so a parallel run reports in the same order as a
// sequential one. Results for unplanned cases are appended. Every case is
// recorded at most once.
//
// Thread-safety: all methods are safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	order   []caseKey
	planned map[caseKey]bool
	results map[caseKey]*CaseResult
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		planned: make(map[caseKey]bool),
		results: make(map[caseKey]*CaseResult),
	}
}

// Plan reserves report positions for the cases of suite, in order.
func (a *Aggregator) Plan(suite string, cases ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, name := range cases {
		k := caseKey{suite, name}
		if a.planned[k] {
			continue
		}
		a.planned[k] = true
		a.order = append(a.order, k)
	}
}

// Record stores the verdict of one case.
func (a *Aggregator) Record(suite, name string, v Verdict) error {
	return a.RecordResult(CaseResult{Suite: suite, Case: name, Verdict: v})
}

// RecordResult stores a full case result. Recording the same case twice is
// an error and keeps the first result.
func (a *Aggregator) RecordResult(res CaseResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := caseKey{res.Suite, res.Case}
	if _, done := a.results[k]; done {
		return fmt.Errorf("verdict for %s/%s already recorded", res.Suite, res.Case)
	}
	if !a.planned[k] {
		a.planned[k] = true
		a.order = append(a.order, k)
	}
	stored := res
	a.results[k] = &stored
	return nil
}

// Results returns recorded results in report order.
func (a *Aggregator) Results() []CaseResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]CaseResult, 0, len(a.results))
	for _, k := range a.order {
		if r, ok := a.results[k]; ok {
			out = append(out, *r)
		}
	}
	return out
}

// Summaries groups recorded results by suite. Suites appear in the order
// their first case was planned or recorded.
func (a *Aggregator) Summaries() []SuiteSummary {
	var (
		summaries []SuiteSummary
		index     = make(map[string]int)
	)
	for _, r := range a.Results() {
		i, ok := index[r.Suite]
		if !ok {
			i = len(summaries)
			index[r.Suite] = i
			summaries = append(summaries, SuiteSummary{Name: r.Suite})
		}
		s := &summaries[i]
		s.Cases = append(s.Cases, r)
		switch r.Verdict.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		default:
			s.Errored++
		}
	}
	return summaries
}

// Finalize returns the aggregate counts. ExitCode is zero only if every
// recorded verdict passed.
func (a *Aggregator) Finalize() Totals {
	var t Totals
	for _, r := range a.Results() {
		t.Total++
		switch r.Verdict.Status {
		case StatusPassed:
			t.Passed++
		case StatusFailed:
			t.Failed++
		default:
			t.Errored++
		}
	}
	if t.Passed != t.Total {
		t.ExitCode = 1
	}
	return t
}
