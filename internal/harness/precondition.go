package harness

import (
	"context"

	"github.com/roach88/shopcheck/internal/target"
)

// Precondition prepares a fresh target before each case of a suite.
//
// Prepare returns the handle the case steps run against. Most
// implementations return t itself; a nil handle with a nil error also
// means t.
type Precondition interface {
	Prepare(ctx context.Context, t target.Target, x *Executor) (target.Target, error)
}

// PreconditionFunc adapts a function to Precondition.
type PreconditionFunc func(ctx context.Context, t target.Target) (target.Target, error)

// Prepare implements Precondition.
func (f PreconditionFunc) Prepare(ctx context.Context, t target.Target, _ *Executor) (target.Target, error) {
	return f(ctx, t)
}

// Setup is a declarative precondition: a list of steps run in order with
// the same executor as case steps.
type Setup struct {
	Steps []Step
}

// Prepare implements Precondition. The first failing step stops the setup.
func (s *Setup) Prepare(ctx context.Context, t target.Target, x *Executor) (target.Target, error) {
	for i, step := range s.Steps {
		if err := x.Execute(ctx, t, i, step); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// ApplyPrecondition runs p against t and returns the prepared handle.
// Any failure is returned as a *PreconditionError wrapping the cause.
func ApplyPrecondition(ctx context.Context, suite string, p Precondition, t target.Target, x *Executor) (target.Target, error) {
	prepared, err := p.Prepare(ctx, t, x)
	if err != nil {
		return nil, &PreconditionError{Suite: suite, Cause: err}
	}
	if prepared == nil {
		prepared = t
	}
	return prepared, nil
}
