package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/shopcheck/internal/harness"
)

// ErrRunNotFound is returned when no stored run matches an ID or prefix.
var ErrRunNotFound = errors.New("run not found")

// AmbiguousRunError is returned when an ID prefix matches more than one run.
type AmbiguousRunError struct {
	Prefix  string
	Matches int
}

func (e *AmbiguousRunError) Error() string {
	return fmt.Sprintf("run prefix %q matches %d runs", e.Prefix, e.Matches)
}

// Run is a stored run without its verdicts.
type Run struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Selector   string         `json:"selector,omitempty"`
	Driver     string         `json:"driver,omitempty"`
	BaseURL    string         `json:"base_url,omitempty"`
	Totals     harness.Totals `json:"totals"`
}

const runColumns = `id, started_at, finished_at, selector, driver, base_url,
	passed, failed, errored, total, exit_code`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r                 Run
		started, finished int64
	)
	err := row.Scan(
		&r.ID, &started, &finished, &r.Selector, &r.Driver, &r.BaseURL,
		&r.Totals.Passed, &r.Totals.Failed, &r.Totals.Errored, &r.Totals.Total, &r.Totals.ExitCode,
	)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(0, started).UTC()
	r.FinishedAt = time.Unix(0, finished).UTC()
	return r, nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run whose ID equals ref or, failing that, starts with
// it. The special ref "latest" names the newest run.
func (s *Store) GetRun(ctx context.Context, ref string) (Run, error) {
	if ref == "" {
		return Run{}, fmt.Errorf("get run: empty reference")
	}
	if ref == "latest" {
		runs, err := s.ListRuns(ctx, 1)
		if err != nil {
			return Run{}, err
		}
		if len(runs) == 0 {
			return Run{}, fmt.Errorf("latest: %w", ErrRunNotFound)
		}
		return runs[0], nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE id = ?1 OR substr(id, 1, length(?1)) = ?1
		ORDER BY id = ?1 DESC, id ASC
		LIMIT 2
	`, ref)
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", ref, err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return Run{}, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("iterate runs: %w", err)
	}

	switch {
	case len(matches) == 0:
		return Run{}, fmt.Errorf("%s: %w", ref, ErrRunNotFound)
	case matches[0].ID == ref:
		return matches[0], nil
	case len(matches) > 1:
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM runs WHERE substr(id, 1, length(?1)) = ?1`, ref,
		).Scan(&n); err != nil {
			return Run{}, fmt.Errorf("count runs: %w", err)
		}
		return Run{}, &AmbiguousRunError{Prefix: ref, Matches: n}
	default:
		return matches[0], nil
	}
}

// ReadVerdicts returns a run's case results in report order.
func (s *Store) ReadVerdicts(ctx context.Context, runID string) ([]harness.CaseResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT suite, case_name, status, step_index, reason, expected, actual,
			steps_run, duration_ns
		FROM verdicts
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read verdicts %s: %w", runID, err)
	}
	defer rows.Close()

	var results []harness.CaseResult
	for rows.Next() {
		var (
			res      harness.CaseResult
			status   string
			duration int64
		)
		err := rows.Scan(
			&res.Suite, &res.Case, &status, &res.Verdict.StepIndex,
			&res.Verdict.Reason, &res.Verdict.Expected, &res.Verdict.Actual,
			&res.StepsRun, &duration,
		)
		if err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		res.Verdict.Status = harness.Status(status)
		res.Duration = time.Duration(duration)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdicts: %w", err)
	}
	return results, nil
}

// Change is a case whose status differs between two runs. An empty status
// means the case was not part of that run.
type Change struct {
	Suite  string         `json:"suite"`
	Case   string         `json:"case"`
	Before harness.Status `json:"before,omitempty"`
	After  harness.Status `json:"after,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

// Diff lists the cases whose status changed from run before to run after.
// Cases of after come first in report order, then cases only before ran.
// Reason is the after verdict's reason.
func (s *Store) Diff(ctx context.Context, before, after string) ([]Change, error) {
	old, err := s.ReadVerdicts(ctx, before)
	if err != nil {
		return nil, err
	}
	cur, err := s.ReadVerdicts(ctx, after)
	if err != nil {
		return nil, err
	}

	type key struct{ suite, name string }
	prev := make(map[key]harness.Status, len(old))
	for _, res := range old {
		prev[key{res.Suite, res.Case}] = res.Verdict.Status
	}

	var changes []Change
	seen := make(map[key]bool, len(cur))
	for _, res := range cur {
		k := key{res.Suite, res.Case}
		seen[k] = true
		if was := prev[k]; was != res.Verdict.Status {
			changes = append(changes, Change{
				Suite:  res.Suite,
				Case:   res.Case,
				Before: was,
				After:  res.Verdict.Status,
				Reason: res.Verdict.Reason,
			})
		}
	}
	for _, res := range old {
		if !seen[key{res.Suite, res.Case}] {
			changes = append(changes, Change{Suite: res.Suite, Case: res.Case, Before: res.Verdict.Status})
		}
	}
	return changes, nil
}
