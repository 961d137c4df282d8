package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/shopcheck/internal/harness"
)

// RunMeta records how a run was invoked.
type RunMeta struct {
	Selector string
	Driver   string
	BaseURL  string
}

// WriteRun stores a finished report and its verdicts in one transaction.
// Writing a run ID that is already stored is a no-op.
func (s *Store) WriteRun(ctx context.Context, r *harness.Report, meta RunMeta) (err error) {
	if r == nil {
		return errors.New("write run: nil report")
	}
	if r.RunID == "" {
		return errors.New("write run: report has no run ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (
			id, started_at, finished_at, selector, driver, base_url,
			passed, failed, errored, total, exit_code
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.RunID,
		r.StartedAt.UnixNano(),
		r.FinishedAt.UnixNano(),
		meta.Selector,
		meta.Driver,
		meta.BaseURL,
		r.Totals.Passed,
		r.Totals.Failed,
		r.Totals.Errored,
		r.Totals.Total,
		r.Totals.ExitCode,
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", r.RunID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write run %s: %w", r.RunID, err)
	}
	if n == 0 {
		return tx.Commit()
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO verdicts (
			run_id, seq, suite, case_name, status, step_index,
			reason, expected, actual, steps_run, duration_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write verdicts: %w", err)
	}
	defer stmt.Close()

	for seq, res := range r.Results() {
		_, err = stmt.ExecContext(ctx,
			r.RunID,
			seq,
			res.Suite,
			res.Case,
			string(res.Verdict.Status),
			res.Verdict.StepIndex,
			res.Verdict.Reason,
			res.Verdict.Expected,
			res.Verdict.Actual,
			res.StepsRun,
			int64(res.Duration),
		)
		if err != nil {
			return fmt.Errorf("write verdict %s/%s: %w", res.Suite, res.Case, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("write run %s: commit: %w", r.RunID, err)
	}
	return nil
}
