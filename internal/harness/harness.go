// Package harness runs suites of browser scenarios against isolated targets.
package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/roach88/shopcheck/internal/target"
)

// Observer receives run progress. Calls may come from several goroutines.
type Observer interface {
	RunStarted(total int)
	CaseFinished(res CaseResult)
	RunFinished(totals Totals)
}

// Runner executes suites.
//
// Each case checks a target out of a pool sized to the parallelism level,
// applies its suite's precondition, and runs its steps in order, stopping
// at the first failure. Cases (across and within suites) run concurrently
// up to the parallelism level; each one owns its target exclusively.
type Runner struct {
	factory  target.Factory
	exec     *Executor
	parallel int
	logger   *slog.Logger
	now      func() time.Time
	ids      IDGenerator
	observer Observer
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallel sets how many cases run at once. Values below 1 mean 1.
func WithParallel(n int) Option {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.parallel = n
	}
}

// WithStepTimeout bounds every target suspension.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) { r.exec.StepTimeout = d }
}

// WithAssertWait sets the assertion retry window.
func WithAssertWait(d time.Duration) Option {
	return func(r *Runner) { r.exec.AssertWait = d }
}

// WithPollInterval sets how often a retried assertion re-reads the target.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.exec.PollInterval = d }
}

// WithBaseURL resolves relative URLs in steps against base.
func WithBaseURL(base *url.URL) Option {
	return func(r *Runner) { r.exec.BaseURL = base }
}

// WithLogger sets the logger for the runner and its executor.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = l
		r.exec.Logger = l
	}
}

// WithClock replaces time.Now for case durations and report timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithIDGenerator replaces the run ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runner) { r.ids = g }
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(r *Runner) { r.observer = o }
}

// NewRunner creates a runner that obtains targets from factory.
// The runner never closes the factory.
func NewRunner(factory target.Factory, opts ...Option) *Runner {
	r := &Runner{
		factory:  factory,
		exec:     NewExecutor(),
		parallel: 1,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // quiet unless configured
		now:      time.Now,
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Executor returns the step executor used by the runner.
func (r *Runner) Executor() *Executor {
	return r.exec
}

// suiteRun carries the abort state of one suite within a run.
type suiteRun struct {
	suite  *Suite
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu    sync.Mutex
	abort error
}

// fail aborts the suite with err; only the first error is kept.
func (s *suiteRun) fail(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abort != nil {
		return false
	}
	s.abort = err
	s.cancel(err)
	return true
}

type job struct {
	run *suiteRun
	c   *Case
}

// Run executes every case of suites and returns the report.
//
// Case failures never surface as errors; they are verdicts in the report.
// The returned error joins the InfrastructureErrors that aborted suites
// and the context error if ctx was cancelled. The report is complete
// either way: cases that never started are recorded as Errored.
//
// Suite names and the case names within each suite must be unique; Run
// fails with *DuplicateNameError and no report before starting anything
// otherwise.
func (r *Runner) Run(ctx context.Context, suites []*Suite) (*Report, error) {
	if err := checkNames(suites); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     r.ids.Generate(),
		StartedAt: r.now(),
	}
	agg := NewAggregator()

	var (
		jobs []job
		runs []*suiteRun
	)
	for _, s := range suites {
		sctx, cancel := context.WithCancelCause(ctx)
		sr := &suiteRun{suite: s, ctx: sctx, cancel: cancel}
		runs = append(runs, sr)

		names := make([]string, len(s.Cases))
		for i, c := range s.Cases {
			names[i] = c.Name
			jobs = append(jobs, job{run: sr, c: c})
		}
		agg.Plan(s.Name, names...)
	}

	if r.observer != nil {
		r.observer.RunStarted(len(jobs))
	}
	r.logger.Info("run started", "run_id", report.RunID, "suites", len(suites), "cases", len(jobs), "parallel", r.parallel)

	pool := target.NewPool(r.factory, r.parallel)

	queue := make(chan job, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < r.parallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range queue {
				res := r.runJob(pool, j)
				if err := agg.RecordResult(res); err != nil {
					r.logger.Error("record verdict", "suite", res.Suite, "case", res.Case, "error", err)
				}
				if r.observer != nil {
					r.observer.CaseFinished(res)
				}
			}
		}()
	}
	wg.Wait()

	if err := pool.Close(); err != nil {
		r.logger.Warn("close target pool", "error", err)
	}

	var errs []error
	for _, sr := range runs {
		sr.cancel(nil)
		if sr.abort != nil {
			errs = append(errs, sr.abort)
		}
	}
	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	report.Suites = agg.Summaries()
	report.Totals = agg.Finalize()
	report.FinishedAt = r.now()

	if r.observer != nil {
		r.observer.RunFinished(report.Totals)
	}
	r.logger.Info("run finished",
		"run_id", report.RunID,
		"passed", report.Totals.Passed,
		"failed", report.Totals.Failed,
		"errored", report.Totals.Errored,
	)

	return report, errors.Join(errs...)
}

// runJob runs one case, or records it Errored if its suite was already
// aborted or the run cancelled before it started.
func (r *Runner) runJob(pool *target.Pool, j job) CaseResult {
	sr := j.run
	if sr.ctx.Err() != nil {
		err := &CancelledError{Step: -1, Cause: context.Cause(sr.ctx)}
		return CaseResult{Suite: sr.suite.Name, Case: j.c.Name, Verdict: VerdictFor(err), Err: err}
	}

	res := r.runCase(sr.ctx, pool, sr.suite, j.c)
	if IsInfrastructure(res.Err) && sr.fail(res.Err) {
		r.logger.Error("suite aborted", "suite", sr.suite.Name, "case", j.c.Name, "error", res.Err)
	}

	r.logger.Info("case finished",
		"suite", res.Suite,
		"case", res.Case,
		"status", string(res.Verdict.Status),
		"steps", res.StepsRun,
		"duration", res.Duration,
	)
	return res
}

// runCase checks out a target, prepares it and runs the case steps in
// declared order. The first failing step ends the case.
func (r *Runner) runCase(ctx context.Context, pool *target.Pool, s *Suite, c *Case) (res CaseResult) {
	res = CaseResult{Suite: s.Name, Case: c.Name}
	start := r.now()
	defer func() {
		res.Duration = r.now().Sub(start)
		res.Verdict = VerdictFor(res.Err)
	}()

	t, err := pool.Acquire(ctx)
	if err != nil {
		if ctx.Err() != nil {
			res.Err = &CancelledError{Step: -1, Cause: context.Cause(ctx)}
		} else {
			res.Err = &InfrastructureError{Op: "acquire target", Err: err}
		}
		return res
	}
	defer func() {
		release := pool.Release
		if IsInfrastructure(res.Err) {
			release = pool.Discard
		}
		if err := release(t); err != nil {
			r.logger.Warn("release target", "suite", s.Name, "case", c.Name, "error", err)
		}
	}()

	handle := t
	if s.Precondition != nil {
		prepared, err := ApplyPrecondition(ctx, s.Name, s.Precondition, t, r.exec)
		if err != nil {
			res.Err = err
			return res
		}
		if prepared != t {
			defer prepared.Close()
		}
		handle = prepared
	}

	for i, step := range c.Steps {
		res.StepsRun = i + 1
		if err := r.exec.Execute(ctx, handle, i, step); err != nil {
			res.Err = err
			return res
		}
	}
	return res
}
