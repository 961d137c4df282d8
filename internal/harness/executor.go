package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/roach88/shopcheck/internal/target"
)

// Default executor bounds.
const (
	DefaultStepTimeout  = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Executor runs single steps against a target.
//
// Every step gets its own deadline of StepTimeout. Actions perform the
// mutation and then wait for the target to settle; assertions capture the
// relevant state in one read and compare it with Compare. With a positive
// AssertWait an assertion re-reads and re-compares every PollInterval until
// it holds or the window closes, and the last mismatch is reported. Inside
// the window a failed read (no matching element yet) is a mismatch too.
type Executor struct {
	StepTimeout  time.Duration
	AssertWait   time.Duration
	PollInterval time.Duration

	// BaseURL resolves relative navigate targets and url expectations.
	BaseURL *url.URL

	Logger *slog.Logger
}

// NewExecutor returns an executor with default bounds, single-read
// assertions and no base URL.
func NewExecutor() *Executor {
	return &Executor{
		StepTimeout:  DefaultStepTimeout,
		PollInterval: DefaultPollInterval,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Execute runs step (the index-th of its case) against t.
//
// Errors are classified:
//   - *AssertionFailure: expectation mismatch
//   - *ActionTimeoutError: the target did not answer or settle in time
//   - *InfrastructureError: the target is unusable
//   - *CancelledError: ctx was cancelled
//   - *StepError: any other target failure
func (x *Executor) Execute(ctx context.Context, t target.Target, index int, step Step) error {
	stepCtx, cancel := context.WithTimeout(ctx, x.stepTimeout())
	defer cancel()

	var err error
	switch step.Kind {
	case KindAction:
		err = x.act(stepCtx, t, step)
	case KindAssertion:
		err = x.check(stepCtx, t, index, step)
	default:
		err = fmt.Errorf("unknown step kind %d", step.Kind)
	}

	if err != nil {
		return x.classify(ctx, index, step, err)
	}

	x.log().Debug("step completed", "step", index, "op", step.String())
	return nil
}

func (x *Executor) stepTimeout() time.Duration {
	if x.StepTimeout <= 0 {
		return DefaultStepTimeout
	}
	return x.StepTimeout
}

func (x *Executor) log() *slog.Logger {
	if x.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return x.Logger
}

func (x *Executor) act(ctx context.Context, t target.Target, step Step) error {
	var err error
	switch step.Op {
	case OpNavigate:
		err = t.Navigate(ctx, x.resolve(step.Value))
	case OpFill:
		err = t.Fill(ctx, step.Locator, step.Value)
	case OpClick:
		err = t.Click(ctx, step.Locator)
	case OpSelect:
		err = t.SelectOption(ctx, step.Locator, step.Value)
	default:
		return fmt.Errorf("unknown action %q", step.Op)
	}
	if err != nil {
		return err
	}
	return t.WaitStable(ctx)
}

func (x *Executor) check(ctx context.Context, t target.Target, index int, step Step) error {
	expect := step.Expect
	if step.Read == ReadURL {
		expect.Value = x.resolve(expect.Value)
	}

	var last *AssertionFailure
	deadline := time.Now().Add(x.AssertWait)
	for {
		var failure *AssertionFailure
		actual, err := x.observe(ctx, t, step)
		switch {
		case err == nil:
			m := Compare(expect, actual)
			if m == nil {
				return nil
			}
			failure = &AssertionFailure{
				Step:     index,
				Check:    step.String(),
				Expected: m.Expected,
				Actual:   m.Actual,
				Position: m.Position,
			}
		case x.AssertWait <= 0 || target.IsUnavailable(err) || ctx.Err() != nil:
			if last != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last
			}
			return err
		default:
			// Nothing to read yet counts as a miss while the window is open.
			x.log().Debug("assertion read failed", "step", index, "op", step.String(), "error", err)
			failure = &AssertionFailure{
				Step:     index,
				Check:    step.String(),
				Expected: describe(expect),
				Actual:   "absent",
				Position: -1,
			}
		}

		if x.AssertWait <= 0 || !time.Now().Before(deadline) {
			return failure
		}
		last = failure

		interval := x.PollInterval
		if interval <= 0 {
			interval = DefaultPollInterval
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return failure
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// observe captures the state an assertion compares, in a single read.
func (x *Executor) observe(ctx context.Context, t target.Target, step Step) (any, error) {
	switch step.Read {
	case ReadURL:
		return t.ReadURL(ctx)
	case ReadText:
		return t.ReadText(ctx, step.Locator)
	case ReadTexts:
		return t.ReadTexts(ctx, step.Locator)
	case ReadVisibility:
		return t.ReadVisibility(ctx, step.Locator)
	case ReadCount:
		return t.ReadCount(ctx, step.Locator)
	default:
		return nil, fmt.Errorf("unknown read %q", step.Read)
	}
}

// classify maps a raw step error onto the error taxonomy. parent is the
// case context, used to tell cancellation apart from the step's own timeout.
func (x *Executor) classify(parent context.Context, index int, step Step, err error) error {
	var af *AssertionFailure
	if errors.As(err, &af) {
		return err
	}
	if target.IsUnavailable(err) {
		return &InfrastructureError{Op: step.String(), Err: err}
	}
	if parent.Err() != nil {
		return &CancelledError{Step: index, Cause: context.Cause(parent)}
	}
	if target.IsTimeout(err) {
		return &ActionTimeoutError{Step: index, Op: step.String(), Timeout: x.stepTimeout(), Err: err}
	}
	return &StepError{Step: index, Op: step.String(), Err: err}
}

// resolve joins a relative reference onto BaseURL.
func (x *Executor) resolve(ref string) string {
	if x.BaseURL == nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil || u.IsAbs() {
		return ref
	}
	return x.BaseURL.ResolveReference(u).String()
}
